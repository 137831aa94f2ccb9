// Package repository selects and opens the identity store for the configured storage adapter.
package repository

import (
	"context"
	"fmt"

	"user-session-service/internal/config"
	"user-session-service/internal/db"
	"user-session-service/internal/identity/domain"
	"user-session-service/internal/storage"
	"user-session-service/internal/storage/document"
	"user-session-service/internal/storage/flat"
)

// Collection is the collection (document store) or root path (flat store) holding identities.
const Collection = "identities"

// Repository defines persistence for identities. Both adapters satisfy it.
type Repository = storage.Store[domain.Identity]

// Pinger checks the database behind a store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handle is an opened identity store.
type Handle struct {
	Store Repository
	// Pinger is nil for backends without a connection to check.
	Pinger Pinger
	// Close releases the store's connections.
	Close func()
}

// Open returns the identity store for cfg.DAO. The adapter is fixed for the lifetime of the
// returned store.
func Open(ctx context.Context, cfg *config.Config) (*Handle, error) {
	switch cfg.DAO {
	case config.DAODocument:
		pool, err := db.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("repository: open postgres: %w", err)
		}
		return &Handle{
			Store:  document.New[domain.Identity](pool, Collection),
			Pinger: pool,
			Close:  pool.Close,
		}, nil
	case config.DAOFlat:
		backend, err := openFlatBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		h := &Handle{Store: flat.New[domain.Identity](backend), Close: func() {}}
		if p, ok := backend.(Pinger); ok {
			h.Pinger = p
		}
		return h, nil
	default:
		return nil, fmt.Errorf("repository: unknown DAO %q", cfg.DAO)
	}
}

func openFlatBackend(ctx context.Context, cfg *config.Config) (flat.Backend, error) {
	switch cfg.FlatBackend {
	case config.FlatBackendMemory:
		return flat.NewMemoryBackend(), nil
	case config.FlatBackendFirebase:
		client, err := flat.OpenFirebase(ctx, cfg.FirebaseDatabaseURL, cfg.FirebaseCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("repository: open firebase: %w", err)
		}
		return flat.NewFirebaseBackend(client, Collection), nil
	default:
		return nil, fmt.Errorf("repository: unknown FLAT_BACKEND %q", cfg.FlatBackend)
	}
}
