// seed creates a development admin and user in the configured identity store.
// Idempotent: identities whose email is already registered are skipped.
package main

import (
	"context"
	"errors"
	"log"

	"user-session-service/internal/config"
	"user-session-service/internal/identity/domain"
	"user-session-service/internal/identity/repository"
	"user-session-service/internal/identity/service"
	"user-session-service/internal/security"
)

const devPassword = "Passw0rd!dev"

var devIdentities = []service.CreateIdentityInput{
	{Name: "Dev Admin", Email: "admin@example.com", Password: devPassword, Role: domain.RoleAdmin},
	{Name: "Dev User", Email: "dev@example.com", Password: devPassword, PhoneNo: "5555550100", Role: domain.RoleUser},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Env == "production" {
		log.Fatal("seed: refusing to run with APP_ENV=production")
	}

	ctx := context.Background()
	store, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer store.Close()

	identities := service.NewIdentityService(store.Store, security.NewHasher(cfg.BcryptCost))
	for _, in := range devIdentities {
		v, err := identities.CreateIdentity(ctx, in)
		switch {
		case errors.Is(err, service.ErrEmailAlreadyRegistered):
			log.Printf("%s already exists. Skipping.", in.Email)
		case err != nil:
			log.Fatalf("seed %s: %v", in.Email, err)
		default:
			log.Printf("created %s (%s) id=%s", v.Email, v.Role, v.ID)
		}
	}
	log.Printf("Seed complete. Password for dev identities: %s", devPassword)
}
