// Package storage defines the data-access contract implemented by the document and flat adapters.
//
// Records are JSON documents. Field criteria and updates address top-level JSON field names;
// element updates address objects inside a top-level array field.
package storage

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when an id, element, or criteria resolves to no record.
	ErrNotFound = errors.New("storage: not found")
	// ErrInvalidArgument is returned for a missing or malformed id, criteria, or update.
	ErrInvalidArgument = errors.New("storage: invalid argument")
	// ErrConflict is returned when a Push precondition does not hold; nothing is written.
	ErrConflict = errors.New("storage: update precondition failed")
)

// Record pairs a stored value with the id the backend generated for it.
type Record[T any] struct {
	ID    string
	Value T
}

// Store is the uniform persistence contract over record type T.
//
// FindByID and FindOneByFields return (nil, nil) when nothing matches; errors are reserved
// for invalid input and backend failures.
type Store[T any] interface {
	// GetAll returns every record in the collection, in no particular order.
	GetAll(ctx context.Context) ([]Record[T], error)
	// FindByID returns the record with id, or nil if absent.
	FindByID(ctx context.Context, id string) (*Record[T], error)
	// FindOneByFields returns one record whose fields all equal criteria, or nil if none.
	// Which record is returned on multiple matches is adapter-defined.
	FindOneByFields(ctx context.Context, criteria Fields) (*Record[T], error)
	// FindManyByFields returns all records whose fields all equal criteria.
	FindManyByFields(ctx context.Context, criteria Fields) ([]Record[T], error)
	// Create stores value under a backend-generated id.
	Create(ctx context.Context, value T) (string, Record[T], error)
	// Update applies u to the record with id.
	Update(ctx context.Context, id string, u Update) error
	// DeleteByCriteria deletes every record matching criteria. ErrNotFound if none match.
	DeleteByCriteria(ctx context.Context, criteria Fields) error
}

// Fields maps top-level JSON field names to scalar values (string, bool, or number).
type Fields map[string]any

// Update describes a partial update. Parts that are set are applied together.
type Update struct {
	// Set assigns top-level fields. A nil value removes the field.
	Set Fields
	// Push appends one element to a top-level array field.
	Push *Push
	// SetElement assigns fields on the array elements matching a predicate.
	SetElement *SetElement
}

// Push appends Value to the array at Field.
//
// MaxLen and Unless are preconditions checked against the stored array: the push is refused with
// ErrConflict when the array already holds MaxLen elements (if MaxLen > 0) or when an element
// matches Unless (if set). The document adapter checks them in the same statement as the write.
type Push struct {
	Field  string
	Value  any
	MaxLen int
	Unless Fields
}

// SetElement assigns Set on each element of the array at Field whose fields equal Match.
// Elements not matching are left untouched. A nil value in Set removes that key from the element.
type SetElement struct {
	Field string
	Match Fields
	Set   Fields
}
