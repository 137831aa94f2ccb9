package storage

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Doc is the generic JSON object form of a record.
type Doc map[string]any

// Encode converts value to its JSON object form. Values that do not encode to an object fail
// with ErrInvalidArgument.
func Encode[T any](value T) (Doc, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ErrInvalidArgument, err)
	}
	var d Doc
	if err := json.Unmarshal(b, &d); err != nil || d == nil {
		return nil, fmt.Errorf("%w: record must encode to a JSON object", ErrInvalidArgument)
	}
	return d, nil
}

// Decode converts a JSON object back into T.
func Decode[T any](d Doc) (T, error) {
	var v T
	b, err := json.Marshal(d)
	if err != nil {
		return v, err
	}
	err = json.Unmarshal(b, &v)
	return v, err
}

// normalize round-trips v through JSON so it compares equal to values decoded from storage.
func normalize(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks that f is non-empty, has non-empty keys, and holds only scalar values.
func (f Fields) Validate() error {
	if len(f) == 0 {
		return fmt.Errorf("%w: empty criteria", ErrInvalidArgument)
	}
	for k, v := range f {
		if k == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidArgument)
		}
		if !isScalar(v) {
			return fmt.Errorf("%w: field %q must be a string, bool, or number", ErrInvalidArgument, k)
		}
	}
	return nil
}

// Normalized returns f with every value in its decoded JSON form.
func (f Fields) Normalized() (Fields, error) {
	out := make(Fields, len(f))
	for k, v := range f {
		n, err := normalize(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrInvalidArgument, k, err)
		}
		out[k] = n
	}
	return out, nil
}

// Keys returns the field names of f in sorted order.
func (f Fields) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Matches reports whether every field in criteria equals the same field of d.
// criteria must already be normalized.
func (d Doc) Matches(criteria Fields) bool {
	for k, want := range criteria {
		got, ok := d[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

func isScalar(v any) bool {
	switch v.(type) {
	case string, bool, json.Number,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

// Validate checks that u has at least one part and that each part is well formed.
func (u Update) Validate() error {
	if len(u.Set) == 0 && u.Push == nil && u.SetElement == nil {
		return fmt.Errorf("%w: empty update", ErrInvalidArgument)
	}
	for k := range u.Set {
		if k == "" {
			return fmt.Errorf("%w: empty field name", ErrInvalidArgument)
		}
	}
	if p := u.Push; p != nil {
		if p.Field == "" {
			return fmt.Errorf("%w: push field required", ErrInvalidArgument)
		}
		if p.MaxLen < 0 {
			return fmt.Errorf("%w: push max length must not be negative", ErrInvalidArgument)
		}
		if p.Unless != nil {
			if err := p.Unless.Validate(); err != nil {
				return err
			}
		}
	}
	if e := u.SetElement; e != nil {
		if e.Field == "" || len(e.Set) == 0 {
			return fmt.Errorf("%w: element field and assignments required", ErrInvalidArgument)
		}
		if err := e.Match.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Apply applies u to d in memory. It returns ErrNotFound if u targets array elements and
// none match, and ErrConflict, before changing d, if a Push precondition fails.
func (u Update) Apply(d Doc) error {
	if p := u.Push; p != nil {
		if err := p.check(d); err != nil {
			return err
		}
	}
	for k, v := range u.Set {
		if v == nil {
			delete(d, k)
			continue
		}
		n, err := normalize(v)
		if err != nil {
			return fmt.Errorf("%w: field %q: %v", ErrInvalidArgument, k, err)
		}
		d[k] = n
	}
	if p := u.Push; p != nil {
		n, err := normalize(p.Value)
		if err != nil {
			return fmt.Errorf("%w: push %q: %v", ErrInvalidArgument, p.Field, err)
		}
		arr, _ := d[p.Field].([]any)
		d[p.Field] = append(arr, n)
	}
	if e := u.SetElement; e != nil {
		match, err := e.Match.Normalized()
		if err != nil {
			return err
		}
		arr, _ := d[e.Field].([]any)
		matched := false
		for i, el := range arr {
			obj, ok := el.(map[string]any)
			if !ok || !Doc(obj).Matches(match) {
				continue
			}
			matched = true
			for k, v := range e.Set {
				if v == nil {
					delete(obj, k)
					continue
				}
				n, err := normalize(v)
				if err != nil {
					return fmt.Errorf("%w: element field %q: %v", ErrInvalidArgument, k, err)
				}
				obj[k] = n
			}
			arr[i] = obj
		}
		if !matched {
			return fmt.Errorf("%w: no %s element matches", ErrNotFound, e.Field)
		}
	}
	return nil
}

func (p *Push) check(d Doc) error {
	arr, _ := d[p.Field].([]any)
	if p.MaxLen > 0 && len(arr) >= p.MaxLen {
		return fmt.Errorf("%w: %s holds %d elements", ErrConflict, p.Field, len(arr))
	}
	if len(p.Unless) == 0 {
		return nil
	}
	unless, err := p.Unless.Normalized()
	if err != nil {
		return err
	}
	for _, el := range arr {
		if obj, ok := el.(map[string]any); ok && Doc(obj).Matches(unless) {
			return fmt.Errorf("%w: %s already holds a matching element", ErrConflict, p.Field)
		}
	}
	return nil
}
