// Package flat implements storage.Store over a keyed backend that only offers whole-record
// get/put/delete plus a single-field equality query.
//
// Multi-field lookups fetch the whole collection and filter in process. Updates are
// read-modify-write of the whole record: two concurrent updates to the same record can lose one
// writer's change. No locking is layered on top.
package flat

import (
	"context"
	"encoding/json"
)

// Backend is one collection of a flat keyed store.
type Backend interface {
	// Push stores value under a newly generated key and returns the key.
	Push(ctx context.Context, value json.RawMessage) (string, error)
	// Get returns the raw record at key, or nil if absent.
	Get(ctx context.Context, key string) (json.RawMessage, error)
	// GetAll returns every record in the collection keyed by id.
	GetAll(ctx context.Context) (map[string]json.RawMessage, error)
	// Set replaces the record at key.
	Set(ctx context.Context, key string, value json.RawMessage) error
	// Delete removes the record at key.
	Delete(ctx context.Context, key string) error
	// KeysWhereEqual returns the keys of records whose child field equals value.
	KeysWhereEqual(ctx context.Context, field string, value any) ([]string, error)
}
