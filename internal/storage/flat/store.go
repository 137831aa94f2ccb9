package flat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"user-session-service/internal/storage"
)

// Store implements storage.Store[T] on a Backend.
type Store[T any] struct {
	backend Backend
}

var _ storage.Store[struct{}] = (*Store[struct{}])(nil)

// New returns a Store persisting T records in backend.
func New[T any](backend Backend) *Store[T] {
	return &Store[T]{backend: backend}
}

// GetAll returns every record, ordered by key.
func (s *Store[T]) GetAll(ctx context.Context) ([]storage.Record[T], error) {
	docs, keys, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Record[T], 0, len(keys))
	for _, k := range keys {
		v, err := storage.Decode[T](docs[k])
		if err != nil {
			return nil, fmt.Errorf("flat: decode %s: %w", k, err)
		}
		out = append(out, storage.Record[T]{ID: k, Value: v})
	}
	return out, nil
}

// FindByID returns the record at id, or nil if absent.
func (s *Store[T]) FindByID(ctx context.Context, id string) (*storage.Record[T], error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id required", storage.ErrInvalidArgument)
	}
	raw, err := s.backend.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("flat: decode %s: %w", id, err)
	}
	return &storage.Record[T]{ID: id, Value: v}, nil
}

// FindOneByFields returns the matching record with the lowest key, or nil.
func (s *Store[T]) FindOneByFields(ctx context.Context, criteria storage.Fields) (*storage.Record[T], error) {
	recs, err := s.FindManyByFields(ctx, criteria)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// FindManyByFields scans the collection and filters in process.
func (s *Store[T]) FindManyByFields(ctx context.Context, criteria storage.Fields) ([]storage.Record[T], error) {
	if err := criteria.Validate(); err != nil {
		return nil, err
	}
	want, err := criteria.Normalized()
	if err != nil {
		return nil, err
	}
	docs, keys, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}
	var out []storage.Record[T]
	for _, k := range keys {
		if !docs[k].Matches(want) {
			continue
		}
		v, err := storage.Decode[T](docs[k])
		if err != nil {
			return nil, fmt.Errorf("flat: decode %s: %w", k, err)
		}
		out = append(out, storage.Record[T]{ID: k, Value: v})
	}
	return out, nil
}

// Create pushes value under a backend-generated key.
func (s *Store[T]) Create(ctx context.Context, value T) (string, storage.Record[T], error) {
	if _, err := storage.Encode(value); err != nil {
		return "", storage.Record[T]{}, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return "", storage.Record[T]{}, fmt.Errorf("%w: %v", storage.ErrInvalidArgument, err)
	}
	key, err := s.backend.Push(ctx, raw)
	if err != nil {
		return "", storage.Record[T]{}, err
	}
	if key == "" {
		return "", storage.Record[T]{}, fmt.Errorf("%w: failed to generate a unique id", storage.ErrInvalidArgument)
	}
	return key, storage.Record[T]{ID: key, Value: value}, nil
}

// Update reads the whole record, applies u in memory, and writes the whole record back.
func (s *Store[T]) Update(ctx context.Context, id string, u storage.Update) error {
	if id == "" {
		return fmt.Errorf("%w: id required", storage.ErrInvalidArgument)
	}
	if err := u.Validate(); err != nil {
		return err
	}
	raw, err := s.backend.Get(ctx, id)
	if err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	var d storage.Doc
	if err := json.Unmarshal(raw, &d); err != nil {
		return fmt.Errorf("flat: decode %s: %w", id, err)
	}
	if err := u.Apply(d); err != nil {
		return err
	}
	out, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, id, out)
}

// DeleteByCriteria queries the backend index on the first criteria field, narrows the
// candidates on the remaining fields, and deletes each match.
func (s *Store[T]) DeleteByCriteria(ctx context.Context, criteria storage.Fields) error {
	if err := criteria.Validate(); err != nil {
		return err
	}
	want, err := criteria.Normalized()
	if err != nil {
		return err
	}
	names := want.Keys()
	keys, err := s.backend.KeysWhereEqual(ctx, names[0], want[names[0]])
	if err != nil {
		return err
	}
	if len(names) > 1 {
		keys, err = s.narrow(ctx, keys, want)
		if err != nil {
			return err
		}
	}
	if len(keys) == 0 {
		return storage.ErrNotFound
	}
	for _, k := range keys {
		if err := s.backend.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store[T]) narrow(ctx context.Context, keys []string, want storage.Fields) ([]string, error) {
	var out []string
	for _, k := range keys {
		raw, err := s.backend.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if raw == nil {
			continue
		}
		var d storage.Doc
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, fmt.Errorf("flat: decode %s: %w", k, err)
		}
		if d.Matches(want) {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *Store[T]) scan(ctx context.Context) (map[string]storage.Doc, []string, error) {
	all, err := s.backend.GetAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	docs := make(map[string]storage.Doc, len(all))
	keys := make([]string, 0, len(all))
	for k, raw := range all {
		var d storage.Doc
		if err := json.Unmarshal(raw, &d); err != nil {
			return nil, nil, fmt.Errorf("flat: decode %s: %w", k, err)
		}
		if d == nil {
			continue
		}
		docs[k] = d
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return docs, keys, nil
}
