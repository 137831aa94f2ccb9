package flat

import (
	"context"
	"encoding/json"
	"errors"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"
)

// FirebaseBackend is a Backend over one Firebase Realtime Database path.
//
// KeysWhereEqual uses orderByChild/equalTo, which requires an ".indexOn" rule for the queried
// child (e.g. "email") on the collection path.
type FirebaseBackend struct {
	ref *db.Ref
}

// OpenFirebase returns a Realtime Database client for databaseURL. credentialsFile may be empty
// to use application default credentials.
func OpenFirebase(ctx context.Context, databaseURL, credentialsFile string) (*db.Client, error) {
	if databaseURL == "" {
		return nil, errors.New("firebase: database URL is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: databaseURL}, opts...)
	if err != nil {
		return nil, err
	}
	return app.Database(ctx)
}

// NewFirebaseBackend returns a Backend rooted at collection.
func NewFirebaseBackend(client *db.Client, collection string) *FirebaseBackend {
	return &FirebaseBackend{ref: client.NewRef(collection)}
}

// Push writes value under a server-generated push id.
func (b *FirebaseBackend) Push(ctx context.Context, value json.RawMessage) (string, error) {
	child, err := b.ref.Push(ctx, value)
	if err != nil {
		return "", err
	}
	return child.Key, nil
}

// Get returns the node at key, or nil if it does not exist.
func (b *FirebaseBackend) Get(ctx context.Context, key string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := b.ref.Child(key).Get(ctx, &raw); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	return raw, nil
}

// GetAll returns every child of the collection.
func (b *FirebaseBackend) GetAll(ctx context.Context) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := b.ref.Get(ctx, &all); err != nil {
		return nil, err
	}
	for k, v := range all {
		if isNull(v) {
			delete(all, k)
		}
	}
	return all, nil
}

// Set replaces the node at key.
func (b *FirebaseBackend) Set(ctx context.Context, key string, value json.RawMessage) error {
	return b.ref.Child(key).Set(ctx, value)
}

// Delete removes the node at key.
func (b *FirebaseBackend) Delete(ctx context.Context, key string) error {
	return b.ref.Child(key).Delete(ctx)
}

// KeysWhereEqual runs orderByChild(field).equalTo(value).
func (b *FirebaseBackend) KeysWhereEqual(ctx context.Context, field string, value any) ([]string, error) {
	nodes, err := b.ref.OrderByChild(field).EqualTo(value).GetOrdered(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(nodes))
	for _, n := range nodes {
		keys = append(keys, n.Key())
	}
	return keys, nil
}

// Ping reads at most one key of the collection.
func (b *FirebaseBackend) Ping(ctx context.Context) error {
	var v map[string]json.RawMessage
	return b.ref.OrderByKey().LimitToFirst(1).Get(ctx, &v)
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
