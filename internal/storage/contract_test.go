package storage_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"user-session-service/internal/db"
	"user-session-service/internal/db/migrate"
	"user-session-service/internal/storage"
	"user-session-service/internal/storage/document"
	"user-session-service/internal/storage/flat"
)

type contact struct {
	Origin string `json:"origin"`
	Token  string `json:"token"`
	Note   string `json:"note,omitempty"`
}

type person struct {
	Email    string    `json:"email"`
	Role     int       `json:"role"`
	Phone    string    `json:"phone,omitempty"`
	Contacts []contact `json:"contacts,omitempty"`
}

type storeFactory struct {
	name      string
	newStore  func(t *testing.T) storage.Store[person]
	missingID string
}

func factories(t *testing.T) []storeFactory {
	t.Helper()
	out := []storeFactory{{
		name: "flat/memory",
		newStore: func(t *testing.T) storage.Store[person] {
			return flat.New[person](flat.NewMemoryBackend())
		},
		missingID: ulid.Make().String(),
	}}

	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		if err := migrate.Run(dsn, "up"); err != nil {
			t.Fatalf("migrate up: %v", err)
		}
		pool, err := db.Open(context.Background(), dsn)
		if err != nil {
			t.Fatalf("db.Open: %v", err)
		}
		t.Cleanup(pool.Close)
		out = append(out, storeFactory{
			name: "document/postgres",
			newStore: func(t *testing.T) storage.Store[person] {
				collection := "test_" + strings.ToLower(ulid.Make().String())
				t.Cleanup(func() {
					_, _ = pool.Exec(context.Background(), `DELETE FROM documents WHERE collection = $1`, collection)
				})
				return document.New[person](pool, collection)
			},
			missingID: uuid.NewString(),
		})
	}

	if os.Getenv("FIREBASE_DATABASE_EMULATOR_HOST") != "" {
		client, err := flat.OpenFirebase(context.Background(), "http://localhost:9000?ns=user-session-test", "")
		if err != nil {
			t.Logf("firebase emulator unavailable: %v", err)
		} else {
			out = append(out, storeFactory{
				name: "flat/firebase",
				newStore: func(t *testing.T) storage.Store[person] {
					path := "test_" + strings.ToLower(ulid.Make().String())
					t.Cleanup(func() { _ = client.NewRef(path).Delete(context.Background()) })
					return flat.New[person](flat.NewFirebaseBackend(client, path))
				},
				missingID: "-missing",
			})
		}
	}
	return out
}

func seed(t *testing.T, s storage.Store[person], people ...person) []string {
	t.Helper()
	ids := make([]string, 0, len(people))
	for _, p := range people {
		id, rec, err := s.Create(context.Background(), p)
		if err != nil {
			t.Fatalf("Create(%s): %v", p.Email, err)
		}
		if id == "" || rec.ID != id {
			t.Fatalf("Create returned id %q, record id %q", id, rec.ID)
		}
		ids = append(ids, id)
	}
	return ids
}

func mustGet(t *testing.T, s storage.Store[person], id string) person {
	t.Helper()
	rec, err := s.FindByID(context.Background(), id)
	if err != nil || rec == nil {
		t.Fatalf("FindByID(%s) = %v, %v", id, rec, err)
	}
	return rec.Value
}

func TestStoreContract(t *testing.T) {
	for _, f := range factories(t) {
		t.Run(f.name, func(t *testing.T) {
			t.Run("CreateAndFind", func(t *testing.T) { testCreateAndFind(t, f) })
			t.Run("FindByFields", func(t *testing.T) { testFindByFields(t, f) })
			t.Run("UpdateSet", func(t *testing.T) { testUpdateSet(t, f) })
			t.Run("UpdateArrays", func(t *testing.T) { testUpdateArrays(t, f) })
			t.Run("UpdateErrors", func(t *testing.T) { testUpdateErrors(t, f) })
			t.Run("PushPreconditions", func(t *testing.T) { testPushPreconditions(t, f) })
			t.Run("DeleteByCriteria", func(t *testing.T) { testDelete(t, f) })
		})
	}
}

func testCreateAndFind(t *testing.T, f storeFactory) {
	s := f.newStore(t)
	ctx := context.Background()
	ids := seed(t, s, person{Email: "a@example.com", Role: 1}, person{Email: "b@example.com"})
	if ids[0] == ids[1] {
		t.Fatalf("ids should be distinct, got %q twice", ids[0])
	}

	if got := mustGet(t, s, ids[0]); got.Email != "a@example.com" || got.Role != 1 {
		t.Errorf("FindByID = %+v", got)
	}
	rec, err := s.FindByID(ctx, f.missingID)
	if err != nil || rec != nil {
		t.Errorf("FindByID(missing) = %v, %v; want nil, nil", rec, err)
	}
	if _, err := s.FindByID(ctx, ""); !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("FindByID(\"\") err = %v, want ErrInvalidArgument", err)
	}

	all, err := s.GetAll(ctx)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("GetAll len = %d, want 2", len(all))
	}
}

func testFindByFields(t *testing.T, f storeFactory) {
	s := f.newStore(t)
	ctx := context.Background()
	ids := seed(t, s,
		person{Email: "a@example.com", Role: 0},
		person{Email: "b@example.com", Role: 1},
		person{Email: "c@example.com", Role: 1},
	)

	rec, err := s.FindOneByFields(ctx, storage.Fields{"email": "b@example.com", "role": 1})
	if err != nil || rec == nil || rec.ID != ids[1] {
		t.Errorf("FindOneByFields = %v, %v; want %s", rec, err, ids[1])
	}
	rec, err = s.FindOneByFields(ctx, storage.Fields{"email": "b@example.com", "role": 0})
	if err != nil || rec != nil {
		t.Errorf("FindOneByFields(mismatch) = %v, %v; want nil, nil", rec, err)
	}
	rec, err = s.FindOneByFields(ctx, storage.Fields{"role": 0})
	if err != nil || rec == nil || rec.ID != ids[0] {
		t.Errorf("FindOneByFields(role 0) = %v, %v; want %s", rec, err, ids[0])
	}

	many, err := s.FindManyByFields(ctx, storage.Fields{"role": 1})
	if err != nil {
		t.Fatalf("FindManyByFields: %v", err)
	}
	if len(many) != 2 {
		t.Errorf("FindManyByFields len = %d, want 2", len(many))
	}
	none, err := s.FindManyByFields(ctx, storage.Fields{"email": "z@example.com"})
	if err != nil || len(none) != 0 {
		t.Errorf("FindManyByFields(none) = %v, %v", none, err)
	}

	if _, err := s.FindOneByFields(ctx, storage.Fields{}); !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("empty criteria err = %v, want ErrInvalidArgument", err)
	}
	if _, err := s.FindManyByFields(ctx, storage.Fields{"contacts": []string{"x"}}); !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("non-scalar criteria err = %v, want ErrInvalidArgument", err)
	}
}

func testUpdateSet(t *testing.T, f storeFactory) {
	s := f.newStore(t)
	ctx := context.Background()
	ids := seed(t, s, person{Email: "a@example.com", Phone: "5550000000"})

	err := s.Update(ctx, ids[0], storage.Update{Set: storage.Fields{"role": 1, "phone": nil}})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := mustGet(t, s, ids[0])
	if got.Role != 1 || got.Phone != "" || got.Email != "a@example.com" {
		t.Errorf("after Set = %+v", got)
	}
}

func testUpdateArrays(t *testing.T, f storeFactory) {
	s := f.newStore(t)
	ctx := context.Background()
	ids := seed(t, s, person{Email: "a@example.com"})
	id := ids[0]

	for _, c := range []contact{{Origin: "o1", Token: "t1", Note: "n"}, {Origin: "o2", Token: "t2"}} {
		if err := s.Update(ctx, id, storage.Update{Push: &storage.Push{Field: "contacts", Value: c}}); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}
	err := s.Update(ctx, id, storage.Update{SetElement: &storage.SetElement{
		Field: "contacts",
		Match: storage.Fields{"origin": "o1"},
		Set:   storage.Fields{"token": "t1b", "note": nil},
	}})
	if err != nil {
		t.Fatalf("SetElement: %v", err)
	}

	got := mustGet(t, s, id).Contacts
	want := []contact{{Origin: "o1", Token: "t1b"}, {Origin: "o2", Token: "t2"}}
	if len(got) != len(want) {
		t.Fatalf("contacts = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("contacts[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	// Element assignments may carry objects; unrelated elements stay as they were.
	err = s.Update(ctx, id, storage.Update{SetElement: &storage.SetElement{
		Field: "contacts",
		Match: storage.Fields{"token": "t2"},
		Set:   storage.Fields{"meta": map[string]any{"createdAt": 1, "token": "r"}},
	}})
	if err != nil {
		t.Fatalf("SetElement(object value): %v", err)
	}
	if got := mustGet(t, s, id).Contacts; got[0] != want[0] || got[1] != want[1] {
		t.Errorf("contacts after object assignment = %+v", got)
	}
}

func testUpdateErrors(t *testing.T, f storeFactory) {
	s := f.newStore(t)
	ctx := context.Background()
	ids := seed(t, s, person{Email: "a@example.com", Contacts: []contact{{Origin: "o1", Token: "t1"}}})

	err := s.Update(ctx, f.missingID, storage.Update{Set: storage.Fields{"role": 1}})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Update(missing) err = %v, want ErrNotFound", err)
	}
	err = s.Update(ctx, ids[0], storage.Update{SetElement: &storage.SetElement{
		Field: "contacts",
		Match: storage.Fields{"origin": "nope"},
		Set:   storage.Fields{"token": "x"},
	}})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SetElement(no match) err = %v, want ErrNotFound", err)
	}
	if got := mustGet(t, s, ids[0]); got.Contacts[0].Token != "t1" {
		t.Errorf("failed element update changed the record: %+v", got)
	}
	if err := s.Update(ctx, ids[0], storage.Update{}); !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("empty update err = %v, want ErrInvalidArgument", err)
	}
	if err := s.Update(ctx, "", storage.Update{Set: storage.Fields{"role": 1}}); !errors.Is(err, storage.ErrInvalidArgument) {
		t.Errorf("Update(\"\") err = %v, want ErrInvalidArgument", err)
	}
}

func testPushPreconditions(t *testing.T, f storeFactory) {
	s := f.newStore(t)
	ctx := context.Background()
	ids := seed(t, s, person{Email: "a@example.com"})
	id := ids[0]
	push := func(origin string) error {
		return s.Update(ctx, id, storage.Update{Push: &storage.Push{
			Field:  "contacts",
			Value:  contact{Origin: origin, Token: "t-" + origin},
			MaxLen: 2,
			Unless: storage.Fields{"origin": origin},
		}})
	}

	if err := push("o1"); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := push("o1"); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("duplicate push err = %v, want ErrConflict", err)
	}
	if err := push("o2"); err != nil {
		t.Fatalf("second push: %v", err)
	}
	if err := push("o3"); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("push past max length err = %v, want ErrConflict", err)
	}
	if got := mustGet(t, s, id).Contacts; len(got) != 2 || got[0].Origin != "o1" || got[1].Origin != "o2" {
		t.Errorf("contacts = %+v, want o1 and o2", got)
	}

	err := s.Update(ctx, f.missingID, storage.Update{Push: &storage.Push{Field: "contacts", Value: contact{Origin: "o1"}, MaxLen: 2}})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("guarded push on missing record err = %v, want ErrNotFound", err)
	}
}

func testDelete(t *testing.T, f storeFactory) {
	s := f.newStore(t)
	ctx := context.Background()
	ids := seed(t, s,
		person{Email: "dup@example.com", Role: 0},
		person{Email: "dup@example.com", Role: 1},
		person{Email: "keep@example.com"},
	)

	if err := s.DeleteByCriteria(ctx, storage.Fields{"email": "dup@example.com"}); err != nil {
		t.Fatalf("DeleteByCriteria: %v", err)
	}
	for _, id := range ids[:2] {
		if rec, _ := s.FindByID(ctx, id); rec != nil {
			t.Errorf("record %s should be deleted", id)
		}
	}
	mustGet(t, s, ids[2])

	if err := s.DeleteByCriteria(ctx, storage.Fields{"email": "dup@example.com"}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if err := s.DeleteByCriteria(ctx, storage.Fields{"email": "keep@example.com", "role": 1}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("narrowed delete err = %v, want ErrNotFound", err)
	}
	mustGet(t, s, ids[2])
}
