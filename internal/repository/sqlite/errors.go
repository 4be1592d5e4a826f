package sqlite

import (
	"errors"
	"fmt"
	"strings"

	// Importing the driver package (not just blank-importing it) lets us
	// inspect *moderncsqlite.Error codes. Its init() still registers the
	// "sqlite" driver with database/sql.
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/snippet-vault/internal/apperror"
)

// wrapErr turns a driver error into a domain error where one applies and
// otherwise prefixes it with the operation, "sqlite: creating snippet: ...".
func wrapErr(op string, err error) error {
	if isBusy(err) {
		return apperror.Unavailable(op, err)
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}

func sqliteCode(err error) (int, bool) {
	var sqlErr *moderncsqlite.Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code(), true
	}
	return 0, false
}

// isBusy reports SQLITE_BUSY or SQLITE_LOCKED, including extended codes.
func isBusy(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	primary := code & 0xff
	return primary == sqlite3.SQLITE_BUSY || primary == sqlite3.SQLITE_LOCKED
}

func isUniqueViolation(err error) bool {
	code, ok := sqliteCode(err)
	if !ok {
		return false
	}
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// without extended result codes only the message tells them apart
		return strings.Contains(err.Error(), "UNIQUE constraint failed")
	}
	return false
}
