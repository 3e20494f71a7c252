package db

import (
	"strings"

	"github.com/teranos/idxtools/errors"
)

// ErrDatabaseClosed is returned when a dump is attempted on a closed connection.
var ErrDatabaseClosed = errors.New("database is closed")

// IsDatabaseClosed checks if an error indicates the database connection is
// closed, either as our sentinel or as the raw database/sql message.
func IsDatabaseClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDatabaseClosed) {
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
