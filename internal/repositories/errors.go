package repositories

import (
	"database/sql"
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a specific record is not found.
	ErrNotFound = errors.New("requested record not found")

	// ErrDatabaseError is returned for unexpected database errors.
	// It can be used to wrap more specific driver errors.
	ErrDatabaseError = errors.New("database error")

	// ErrDuplicateKey is returned when an insert violates a unique
	// constraint. The movement repository relies on it to detect
	// idempotency-key races.
	ErrDuplicateKey = errors.New("duplicate key value violates unique constraint")

	// ErrStaleState is returned when a guarded update finds the row no
	// longer in the expected state (e.g. completing a completed count).
	ErrStaleState = errors.New("record not in expected state")
)

// SQLExecutor is satisfied by *sql.DB and *sql.Tx, so repository helpers can
// run standalone or inside a transaction.
type SQLExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

// isDuplicateKey detects unique-constraint violations from the driver error
// text. lib/pq reports SQLSTATE 23505 with this message prefix.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value violates unique constraint")
}
