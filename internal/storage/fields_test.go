package storage

import (
	"errors"
	"testing"
)

func TestFields_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		fields  Fields
		wantErr bool
	}{
		{"string", Fields{"email": "a@example.com"}, false},
		{"number and bool", Fields{"role": 1, "active": true}, false},
		{"empty", Fields{}, true},
		{"nil", nil, true},
		{"empty key", Fields{"": "x"}, true},
		{"object value", Fields{"session": map[string]any{"a": 1}}, true},
		{"nil value", Fields{"email": nil}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.fields.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("err = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestDoc_MatchesNormalizedNumbers(t *testing.T) {
	d := Doc{"role": float64(1), "email": "a@example.com"}
	want, err := Fields{"role": 1, "email": "a@example.com"}.Normalized()
	if err != nil {
		t.Fatalf("Normalized: %v", err)
	}
	if !d.Matches(want) {
		t.Error("int criteria should match a decoded float field")
	}
	other, _ := Fields{"role": 0}.Normalized()
	if d.Matches(other) {
		t.Error("role 0 should not match role 1")
	}
	missing, _ := Fields{"phoneNo": "1"}.Normalized()
	if d.Matches(missing) {
		t.Error("absent field should not match")
	}
}

func TestEncode_RejectsNonObject(t *testing.T) {
	if _, err := Encode("plain string"); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Encode(string) err = %v, want ErrInvalidArgument", err)
	}
	if _, err := Encode(struct{ C chan int }{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Encode(chan) err = %v, want ErrInvalidArgument", err)
	}
}

type element struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
	Extra string `json:"extra,omitempty"`
}

func TestUpdate_Apply(t *testing.T) {
	d := Doc{
		"name":  "before",
		"phone": "123",
		"items": []any{
			map[string]any{"key": "a", "count": float64(1), "extra": "x"},
			map[string]any{"key": "b", "count": float64(2)},
		},
	}
	u := Update{
		Set:  Fields{"name": "after", "phone": nil},
		Push: &Push{Field: "items", Value: element{Key: "c", Count: 3}},
		SetElement: &SetElement{
			Field: "items",
			Match: Fields{"key": "a"},
			Set:   Fields{"count": 10, "extra": nil},
		},
	}
	if err := u.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := u.Apply(d); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if d["name"] != "after" {
		t.Errorf("name = %v, want after", d["name"])
	}
	if _, ok := d["phone"]; ok {
		t.Error("phone should be removed")
	}
	got, err := Decode[struct {
		Items []element `json:"items"`
	}](d)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	want := []element{{Key: "a", Count: 10}, {Key: "b", Count: 2}, {Key: "c", Count: 3}}
	if len(got.Items) != len(want) {
		t.Fatalf("items = %+v, want %+v", got.Items, want)
	}
	for i := range want {
		if got.Items[i] != want[i] {
			t.Errorf("items[%d] = %+v, want %+v", i, got.Items[i], want[i])
		}
	}
}

func TestUpdate_ApplyPushCreatesArray(t *testing.T) {
	d := Doc{}
	if err := (Update{Push: &Push{Field: "items", Value: element{Key: "a"}}}).Apply(d); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	arr, ok := d["items"].([]any)
	if !ok || len(arr) != 1 {
		t.Errorf("items = %v, want one element", d["items"])
	}
}

func TestUpdate_ApplyPushPreconditions(t *testing.T) {
	items := func() Doc {
		return Doc{"name": "before", "items": []any{
			map[string]any{"key": "a"},
			map[string]any{"key": "b"},
		}}
	}
	testCases := []struct {
		name    string
		push    Push
		wantErr error
		wantLen int
	}{
		{"under max length", Push{Field: "items", Value: element{Key: "c"}, MaxLen: 3}, nil, 3},
		{"at max length", Push{Field: "items", Value: element{Key: "c"}, MaxLen: 2}, ErrConflict, 2},
		{"no matching element", Push{Field: "items", Value: element{Key: "c"}, Unless: Fields{"key": "c"}}, nil, 3},
		{"matching element", Push{Field: "items", Value: element{Key: "b"}, Unless: Fields{"key": "b"}}, ErrConflict, 2},
		{"missing array", Push{Field: "other", Value: element{Key: "a"}, MaxLen: 1, Unless: Fields{"key": "a"}}, nil, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := items()
			push := tc.push
			err := Update{Set: Fields{"name": "after"}, Push: &push}.Apply(d)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("Apply err = %v, want %v", err, tc.wantErr)
			}
			if got := len(d["items"].([]any)); got != tc.wantLen {
				t.Errorf("len(items) = %d, want %d", got, tc.wantLen)
			}
			if tc.wantErr != nil && d["name"] != "before" {
				t.Error("refused update should leave the document unchanged")
			}
		})
	}
}

func TestUpdate_ApplyNoElementMatch(t *testing.T) {
	d := Doc{"items": []any{map[string]any{"key": "a"}}}
	u := Update{SetElement: &SetElement{Field: "items", Match: Fields{"key": "zzz"}, Set: Fields{"count": 1}}}
	if err := u.Apply(d); !errors.Is(err, ErrNotFound) {
		t.Errorf("Apply err = %v, want ErrNotFound", err)
	}
}

func TestUpdate_Validate(t *testing.T) {
	testCases := []struct {
		name string
		u    Update
	}{
		{"empty", Update{}},
		{"empty set key", Update{Set: Fields{"": 1}}},
		{"push without field", Update{Push: &Push{Value: 1}}},
		{"negative push max length", Update{Push: &Push{Field: "items", Value: 1, MaxLen: -1}}},
		{"empty push unless", Update{Push: &Push{Field: "items", Value: 1, Unless: Fields{}}}},
		{"element without assignments", Update{SetElement: &SetElement{Field: "items", Match: Fields{"key": "a"}}}},
		{"element without match", Update{SetElement: &SetElement{Field: "items", Set: Fields{"count": 1}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.u.Validate(); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Validate() = %v, want ErrInvalidArgument", err)
			}
		})
	}
}
