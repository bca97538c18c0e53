// seed inserts a development user for local testing.
// Idempotent: skips the insert if the dev login already exists.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"authgate/internal/config"
	"authgate/internal/db"
	userrepo "authgate/internal/user/repository"
)

const (
	devLogin    = "dev@example.com"
	devPassword = "password123"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()
	users := userrepo.NewPostgresRepository(conn)

	existing, err := users.GetByLogin(ctx, devLogin)
	if err != nil {
		log.Fatalf("seed check: %v", err)
	}
	if existing != nil {
		log.Printf("Seed already applied (%s exists). Skipping.", devLogin)
		os.Exit(0)
	}

	// Clients send the SHA-256 hex digest of the password, so that digest is
	// what gets stored.
	sum := sha256.Sum256([]byte(devPassword))
	passwordHash := hex.EncodeToString(sum[:])

	if _, err := conn.ExecContext(ctx, `
		INSERT INTO users (user_id, userlogin, password_hash)
		VALUES ($1, $2, $3)
	`, uuid.New().String(), devLogin, passwordHash); err != nil {
		log.Fatalf("create dev user: %v", err)
	}

	log.Println("Seed completed successfully.")
	fmt.Printf("Dev login: %s / %s (send the SHA-256 hex digest of the password)\n", devLogin, devPassword)
}
