package rdb

import (
	"errors"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/lu-zhengda/mailacct/internal/store"
)

func sqlError(err error, format string, args ...any) error {
	return store.Wrap(store.CodeSQL, err, format, args...)
}

// isForeignKeyViolation classifies err by the driver's error code.
func isForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code.Name() == "foreign_key_violation"
	}
	return false
}
