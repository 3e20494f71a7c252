// Package db dumps an index into a SQLite database for ad-hoc SQL queries.
package db

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/logger"
)

// Open opens a SQLite database at the specified path with WAL mode and a
// busy timeout. If log is nil the global logger is used.
func Open(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	log = logger.OrDefault(log)
	log.Debugw("opening database", logger.FieldPath, path)

	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.WrapIOf(err, "failed to open database %s", path)
	}

	pragmas := []struct{ stmt, what string }{
		{"PRAGMA journal_mode = WAL", "enable WAL mode"},
		{"PRAGMA foreign_keys = ON", "enable foreign keys"},
		{"PRAGMA busy_timeout = 5000", "set busy timeout"},
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p.stmt); err != nil {
			conn.Close()
			return nil, errors.WrapIOf(err, "failed to %s on %s", p.what, path)
		}
	}

	log.Infow("database opened", logger.FieldPath, path, "wal_mode", true)
	return conn, nil
}

// OpenWithMigrations opens the database and applies pending migrations.
func OpenWithMigrations(path string, log *zap.SugaredLogger) (*sql.DB, error) {
	conn, err := Open(path, log)
	if err != nil {
		return nil, err
	}
	if err := Migrate(conn, log); err != nil {
		conn.Close()
		return nil, errors.Wrapf(err, "migrate %s", path)
	}
	return conn, nil
}
