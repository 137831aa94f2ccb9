// Package document implements storage.Store over PostgreSQL JSONB documents.
//
// All records live in the documents table, partitioned by collection. Field criteria map to
// jsonb containment (doc @> criteria). Every Update is one UPDATE statement, so an element
// update inside an array is atomic with respect to concurrent updates of sibling elements.
package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"user-session-service/internal/storage"
)

// Querier is the subset of *pgxpool.Pool (or pgx.Tx) used by Store.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements storage.Store[T] for one collection.
type Store[T any] struct {
	db         Querier
	collection string
}

var _ storage.Store[struct{}] = (*Store[struct{}])(nil)

// New returns a Store for collection backed by db.
func New[T any](db Querier, collection string) *Store[T] {
	return &Store[T]{db: db, collection: collection}
}

// GetAll returns every record in the collection.
func (s *Store[T]) GetAll(ctx context.Context) ([]storage.Record[T], error) {
	rows, err := s.db.Query(ctx,
		`SELECT id::text, doc FROM documents WHERE collection = $1 ORDER BY created_at, id`,
		s.collection)
	if err != nil {
		return nil, err
	}
	return collect[T](rows)
}

// FindByID returns the record with id, or nil if absent. Non-UUID ids fail with ErrInvalidArgument.
func (s *Store[T]) FindByID(ctx context.Context, id string) (*storage.Record[T], error) {
	uid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = s.db.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		s.collection, uid).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("document: decode %s: %w", id, err)
	}
	return &storage.Record[T]{ID: id, Value: v}, nil
}

// FindOneByFields returns the oldest matching record, or nil.
func (s *Store[T]) FindOneByFields(ctx context.Context, criteria storage.Fields) (*storage.Record[T], error) {
	filter, err := criteriaJSON(criteria)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT id::text, doc FROM documents
		 WHERE collection = $1 AND doc @> $2::jsonb
		 ORDER BY created_at, id LIMIT 1`,
		s.collection, filter)
	if err != nil {
		return nil, err
	}
	recs, err := collect[T](rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// FindManyByFields returns all matching records, oldest first.
func (s *Store[T]) FindManyByFields(ctx context.Context, criteria storage.Fields) ([]storage.Record[T], error) {
	filter, err := criteriaJSON(criteria)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx,
		`SELECT id::text, doc FROM documents
		 WHERE collection = $1 AND doc @> $2::jsonb
		 ORDER BY created_at, id`,
		s.collection, filter)
	if err != nil {
		return nil, err
	}
	return collect[T](rows)
}

// Create inserts value; the id is generated by the database.
func (s *Store[T]) Create(ctx context.Context, value T) (string, storage.Record[T], error) {
	if _, err := storage.Encode(value); err != nil {
		return "", storage.Record[T]{}, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return "", storage.Record[T]{}, fmt.Errorf("%w: %v", storage.ErrInvalidArgument, err)
	}
	var id string
	err = s.db.QueryRow(ctx,
		`INSERT INTO documents (collection, doc) VALUES ($1, $2::jsonb) RETURNING id::text`,
		s.collection, string(raw)).Scan(&id)
	if err != nil {
		return "", storage.Record[T]{}, err
	}
	return id, storage.Record[T]{ID: id, Value: value}, nil
}

// Update applies u in a single statement. It returns ErrNotFound when id does not resolve or
// when u.SetElement matches no element, and ErrConflict when a Push precondition fails.
func (s *Store[T]) Update(ctx context.Context, id string, u storage.Update) error {
	uid, err := parseID(id)
	if err != nil {
		return err
	}
	if err := u.Validate(); err != nil {
		return err
	}
	q, args, err := buildUpdate(s.collection, uid, u)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if guarded(u.Push) {
			return s.missOrConflict(ctx, id, uid)
		}
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return nil
}

func guarded(p *storage.Push) bool {
	return p != nil && (p.MaxLen > 0 || len(p.Unless) > 0)
}

// missOrConflict tells an absent record from a refused push precondition after an UPDATE
// touched no rows.
func (s *Store[T]) missOrConflict(ctx context.Context, id string, uid uuid.UUID) error {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE collection = $1 AND id = $2)`,
		s.collection, uid).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	return fmt.Errorf("%w: %s", storage.ErrConflict, id)
}

// DeleteByCriteria deletes every matching record.
func (s *Store[T]) DeleteByCriteria(ctx context.Context, criteria storage.Fields) error {
	filter, err := criteriaJSON(criteria)
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND doc @> $2::jsonb`,
		s.collection, filter)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func parseID(id string) (uuid.UUID, error) {
	if id == "" {
		return uuid.Nil, fmt.Errorf("%w: id required", storage.ErrInvalidArgument)
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed id %q", storage.ErrInvalidArgument, id)
	}
	return u, nil
}

func criteriaJSON(criteria storage.Fields) (string, error) {
	if err := criteria.Validate(); err != nil {
		return "", err
	}
	n, err := criteria.Normalized()
	if err != nil {
		return "", err
	}
	b, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("%w: %v", storage.ErrInvalidArgument, err)
	}
	return string(b), nil
}

func collect[T any](rows pgx.Rows) ([]storage.Record[T], error) {
	defer rows.Close()
	var out []storage.Record[T]
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("document: decode %s: %w", id, err)
		}
		out = append(out, storage.Record[T]{ID: id, Value: v})
	}
	return out, rows.Err()
}

// updateBuilder accumulates positional arguments for one UPDATE statement.
type updateBuilder struct {
	args []any
}

func (b *updateBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

// splitAssignments separates assignments into a JSON object of values to merge and the list of
// keys to remove (nil values).
func splitAssignments(set storage.Fields) (string, []string, error) {
	merge := make(map[string]any, len(set))
	var remove []string
	for k, v := range set {
		if v == nil {
			remove = append(remove, k)
			continue
		}
		merge[k] = v
	}
	b, err := json.Marshal(merge)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", storage.ErrInvalidArgument, err)
	}
	return string(b), remove, nil
}

func buildUpdate(collection string, id uuid.UUID, u storage.Update) (string, []any, error) {
	b := &updateBuilder{}
	where := []string{
		"collection = " + b.arg(collection),
		"id = " + b.arg(id),
	}
	expr := "doc"

	if len(u.Set) > 0 {
		merge, remove, err := splitAssignments(u.Set)
		if err != nil {
			return "", nil, err
		}
		if len(remove) > 0 {
			expr = fmt.Sprintf("(%s - %s::text[])", expr, b.arg(remove))
		}
		expr = fmt.Sprintf("(%s || %s::jsonb)", expr, b.arg(merge))
	}

	if p := u.Push; p != nil {
		v, err := json.Marshal(p.Value)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", storage.ErrInvalidArgument, err)
		}
		field := b.arg(p.Field)
		expr = fmt.Sprintf(
			"jsonb_set(%[1]s, ARRAY[%[2]s::text], COALESCE(%[1]s -> %[2]s::text, '[]'::jsonb) || jsonb_build_array(%[3]s::jsonb), true)",
			expr, field, b.arg(string(v)))
		stored := fmt.Sprintf("COALESCE(doc -> %s::text, '[]'::jsonb)", field)
		if p.MaxLen > 0 {
			where = append(where, fmt.Sprintf("jsonb_array_length(%s) < %s", stored, b.arg(p.MaxLen)))
		}
		if len(p.Unless) > 0 {
			unless, err := criteriaJSON(p.Unless)
			if err != nil {
				return "", nil, err
			}
			where = append(where, fmt.Sprintf("NOT (%s @> jsonb_build_array(%s::jsonb))", stored, b.arg(unless)))
		}
	}

	if e := u.SetElement; e != nil {
		match, err := criteriaJSON(e.Match)
		if err != nil {
			return "", nil, err
		}
		merge, remove, err := splitAssignments(e.Set)
		if err != nil {
			return "", nil, err
		}
		field := b.arg(e.Field)
		m := b.arg(match)
		elem := "e"
		if len(remove) > 0 {
			elem = fmt.Sprintf("(e - %s::text[])", b.arg(remove))
		}
		elem = fmt.Sprintf("%s || %s::jsonb", elem, b.arg(merge))
		expr = fmt.Sprintf(
			`jsonb_set(%[1]s, ARRAY[%[2]s::text], (
				SELECT COALESCE(jsonb_agg(CASE WHEN e @> %[3]s::jsonb THEN %[4]s ELSE e END ORDER BY ord), '[]'::jsonb)
				FROM jsonb_array_elements(COALESCE(%[1]s -> %[2]s::text, '[]'::jsonb)) WITH ORDINALITY AS t(e, ord)
			), true)`,
			expr, field, m, elem)
		where = append(where, fmt.Sprintf("doc -> %s::text @> jsonb_build_array(%s::jsonb)", field, m))
	}

	q := fmt.Sprintf("UPDATE documents SET doc = %s WHERE %s", expr, strings.Join(where, " AND "))
	return q, b.args, nil
}
