// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// glossary engine and the handlers to distinguish between different
// failure scenarios without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned by point lookups when no row matches.
var ErrNotFound = errors.New("not found")

// ErrNotPersisted is returned when a write completed without error but
// affected no rows.  The engine reports it as a soft failure.
var ErrNotPersisted = errors.New("no rows persisted")

// ErrConflict is returned when a write violates a uniqueness constraint,
// e.g. two concurrent archives racing for the same version number.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering an email that is taken.
var ErrEmailExists = errors.New("email already exists")

// isDuplicate reports whether err is a unique-key violation from either
// supported driver.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
