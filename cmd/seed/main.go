// seed inserts development sample accounts for local testing.
// Idempotent: each username is skipped if it already exists.
package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"chat-relay/server/internal/config"
	"chat-relay/server/internal/db"
	"chat-relay/server/internal/security"
	"chat-relay/server/internal/user/domain"
	userrepo "chat-relay/server/internal/user/repository"
)

const seedPassword = "password123"

var seedUsers = []struct {
	username string
	email    string
}{
	{"alice", "alice@example.com"},
	{"bob", "bob@example.com"},
	{"charlie", "charlie@example.com"},
	{"user1", "user1@example.com"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	conn, err := db.Open(cfg.DatabaseURL())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	repo := userrepo.NewPostgresRepository(conn)
	hasher := security.NewHasher(cfg.BcryptCost)
	ctx := context.Background()

	for _, su := range seedUsers {
		existing, err := repo.GetByUsername(ctx, su.username)
		if err != nil {
			log.Fatalf("seed check %s: %v", su.username, err)
		}
		if existing != nil {
			log.Printf("user %s already exists, skipping", su.username)
			continue
		}

		passwordHash, err := hasher.Hash([]byte(seedPassword))
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}

		now := time.Now().UTC()
		u := &domain.User{
			ID:           uuid.New().String(),
			Username:     su.username,
			Email:        su.email,
			PasswordHash: passwordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := u.Validate(); err != nil {
			log.Fatalf("seed user %s: %v", su.username, err)
		}
		if err := repo.Create(ctx, u); err != nil {
			log.Fatalf("create user %s: %v", su.username, err)
		}
		log.Printf("user %s added successfully", su.username)
	}
}
