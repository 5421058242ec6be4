// Package main bootstraps the first SUPER_ADMIN. There is no API for creating admins, so a fresh
// database needs this once before anyone can log in.
//
//	CONFIG_PATH=config.yaml SHOPDESK_ADMIN_PASSWORD=... create-admin -email admin@example.com -name "Admin"
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"

	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/config"
	"github.com/shopdesk/shopdesk/internal/db"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopdesk/shopdesk/internal/db/repositories"
)

func main() {
	email := flag.String("email", "", "login email of the new admin")
	name := flag.String("name", "Administrator", "display name")
	flag.Parse()

	password := os.Getenv("SHOPDESK_ADMIN_PASSWORD")
	if *email == "" || password == "" {
		log.Fatal("usage: SHOPDESK_ADMIN_PASSWORD=<password> create-admin -email <email> [-name <name>]")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()
	database, err := db.Connect(ctx, cfg.Database.GetDSN(), 1, 0)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	users := repositories.NewUserRepository(database)
	normalized := strings.ToLower(strings.TrimSpace(*email))
	existing, err := users.GetUserByEmail(ctx, normalized)
	if err != nil {
		log.Fatalf("Failed to look up user: %v", err)
	}
	if existing != nil {
		log.Fatalf("A user with email %s already exists (role %s)", normalized, existing.Role)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}
	user := &models.User{
		Email:        normalized,
		Name:         *name,
		PasswordHash: hash,
		Role:         auth.RoleSuperAdmin,
		Status:       auth.StatusActive,
	}
	if err := users.CreateUser(ctx, user); err != nil {
		log.Fatalf("Failed to create admin: %v", err)
	}
	log.Printf("Created SUPER_ADMIN %s (%s)", user.Email, user.ID)
}
