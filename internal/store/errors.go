package store

import (
	"errors"
	"fmt"
)

var (
	// ErrDatabaseFail matches every storage failure reported by the primitives.
	ErrDatabaseFail = errors.New("database operation failed")

	ErrUnknownColumn   = errors.New("unknown column")
	ErrImmutableColumn = errors.New("immutable column")
	ErrMissingWhere    = errors.New("missing predicate")
)

// Error wraps a storage failure. It matches ErrDatabaseFail and the cause.
type Error struct {
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store: %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrDatabaseFail, e.Err} }

func errRowCount(got, want int64) error {
	return fmt.Errorf("affected %d rows, want %d", got, want)
}

func columnError(base error, table, col string) error {
	return fmt.Errorf("%w: %s.%s", base, table, col)
}
