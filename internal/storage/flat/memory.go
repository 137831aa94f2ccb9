package flat

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"user-session-service/internal/storage"
)

// MemoryBackend is an in-process Backend for local development and tests.
// Keys are ULIDs so they sort by creation time, like RTDB push ids.
type MemoryBackend struct {
	mu     sync.RWMutex
	m      map[string]json.RawMessage
	newKey func() string
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		m:      make(map[string]json.RawMessage),
		newKey: func() string { return ulid.Make().String() },
	}
}

// Push stores value under a new ULID key.
func (b *MemoryBackend) Push(ctx context.Context, value json.RawMessage) (string, error) {
	key := b.newKey()
	if key == "" {
		return "", nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = clone(value)
	return key, nil
}

// Get returns a copy of the record at key, or nil.
func (b *MemoryBackend) Get(ctx context.Context, key string) (json.RawMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.m[key]
	if !ok {
		return nil, nil
	}
	return clone(v), nil
}

// GetAll returns a copy of every record.
func (b *MemoryBackend) GetAll(ctx context.Context) (map[string]json.RawMessage, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(b.m))
	for k, v := range b.m {
		out[k] = clone(v)
	}
	return out, nil
}

// Set replaces the record at key.
func (b *MemoryBackend) Set(ctx context.Context, key string, value json.RawMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = clone(value)
	return nil
}

// Delete removes the record at key. Missing keys are ignored.
func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, key)
	return nil
}

// KeysWhereEqual returns, in key order, the records whose child field equals value.
func (b *MemoryBackend) KeysWhereEqual(ctx context.Context, field string, value any) ([]string, error) {
	want, err := storage.Fields{field: value}.Normalized()
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	var keys []string
	for k, raw := range b.m {
		var d storage.Doc
		if err := json.Unmarshal(raw, &d); err != nil {
			continue
		}
		if d.Matches(want) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func clone(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}

// Ping reports only context cancellation; the map is always reachable.
func (b *MemoryBackend) Ping(ctx context.Context) error {
	return ctx.Err()
}
