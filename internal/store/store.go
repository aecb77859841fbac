// Package store provides the table-style data store client and its backends.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Collection names used by WhisperBridge.
const (
	UsersTable       = "users"
	ScrollsTable     = "scrolls"
	SubmissionsTable = "scroll_submissions"
	ReflectionsTable = "reflections"
)

// Record is a single row keyed by column name.
type Record map[string]any

// Filter restricts a query to rows whose column equals Value.
type Filter struct {
	Column string
	Value  any
}

// Eq builds an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Value: value}
}

// Client is the generic CRUD interface over named record collections.
type Client interface {
	// Select returns every record of collection matching all filters.
	Select(ctx context.Context, collection string, filters ...Filter) ([]Record, error)

	// Insert creates a record and returns the stored representation.
	Insert(ctx context.Context, collection string, record Record) ([]Record, error)

	// Update applies patch to every record matching all filters and returns them.
	Update(ctx context.Context, collection string, patch Record, filters ...Filter) ([]Record, error)

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Incrementer is implemented by backends that can add one to a numeric
// column atomically.
type Incrementer interface {
	Increment(ctx context.Context, collection, column string, filters ...Filter) ([]Record, error)
}

// ErrUnknownCollection is returned for collections a backend does not host.
var ErrUnknownCollection = errors.New("unknown collection")

// ErrUnknownColumn is returned when a filter or record names a column the
// collection does not have.
var ErrUnknownColumn = errors.New("unknown column")

// Error wraps every failure reported by a backend.
type Error struct {
	Op         string
	Collection string
	Err        error
}

func (e *Error) Error() string {
	if e.Collection == "" {
		return fmt.Sprintf("store %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Collection, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapErr(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return &Error{Op: op, Collection: collection, Err: err}
}
