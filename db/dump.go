package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/teranos/idxtools/attrs"
	"github.com/teranos/idxtools/errors"
	"github.com/teranos/idxtools/format"
	"github.com/teranos/idxtools/index"
	"github.com/teranos/idxtools/logger"
)

// DumpStats counts the rows written by Dump.
type DumpStats struct {
	Datasets  int
	Metadata  int
	Files     int
	FileAttrs int
}

// Dump replaces the content of the index tables with ix in a single
// transaction. List values are stored joined with the format's replicate
// separator.
func Dump(ctx context.Context, conn *sql.DB, ix *index.Index) (DumpStats, error) {
	var stats DumpStats
	start := time.Now()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		if IsDatabaseClosed(err) {
			return stats, errors.Mark(errors.Wrap(err, "begin dump"), ErrDatabaseClosed)
		}
		return stats, errors.WrapIO(err, "begin dump")
	}
	defer tx.Rollback()

	for _, table := range []string{"file_attrs", "files", "metadata", "datasets"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return stats, errors.WrapIOf(err, "clear %s", table)
		}
	}

	stmts := map[string]string{
		"datasets":   "INSERT INTO datasets (id) VALUES (?)",
		"metadata":   "INSERT INTO metadata (dataset_id, key, value) VALUES (?, ?, ?)",
		"files":      "INSERT INTO files (dataset_id, path, type) VALUES (?, ?, ?)",
		"file_attrs": "INSERT INTO file_attrs (dataset_id, path, key, value) VALUES (?, ?, ?, ?)",
	}
	prepared := make(map[string]*sql.Stmt, len(stmts))
	for name, q := range stmts {
		st, err := tx.PrepareContext(ctx, q)
		if err != nil {
			return stats, errors.WrapIOf(err, "prepare %s insert", name)
		}
		defer st.Close()
		prepared[name] = st
	}

	f := ix.Format()
	for _, ds := range ix.Datasets() {
		if _, err := prepared["datasets"].ExecContext(ctx, ds.ID); err != nil {
			return stats, errors.WrapIOf(err, "insert dataset %s", ds.ID)
		}
		stats.Datasets++

		meta := ds.Metadata()
		for _, key := range meta.Keys() {
			if key == format.KeyID {
				continue
			}
			if _, err := prepared["metadata"].ExecContext(ctx, ds.ID, key, cell(meta[key], f)); err != nil {
				return stats, errors.WrapIOf(err, "insert metadata %s.%s", ds.ID, key)
			}
			stats.Metadata++
		}

		for _, path := range ds.Paths() {
			file, _ := ds.File(path)
			if _, err := prepared["files"].ExecContext(ctx, ds.ID, path, file.GetString(format.KeyType)); err != nil {
				return stats, errors.WrapIOf(err, "insert file %s", path)
			}
			stats.Files++

			for _, key := range file.Without(format.KeyPath, format.KeyType).Keys() {
				if _, err := prepared["file_attrs"].ExecContext(ctx, ds.ID, path, key, cell(file[key], f)); err != nil {
					return stats, errors.WrapIOf(err, "insert file attribute %s.%s", path, key)
				}
				stats.FileAttrs++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, errors.WrapIO(err, "commit dump")
	}

	logger.Infow("index dumped",
		logger.FieldIndex, ix.Path(),
		logger.FieldCount, stats.Datasets,
		"files", stats.Files,
		logger.FieldDuration, time.Since(start).Milliseconds())
	return stats, nil
}

func cell(v attrs.Value, f *format.Format) string {
	if v.IsEmpty() {
		return f.MissingValue
	}
	return v.Join(f.RepSep)
}
