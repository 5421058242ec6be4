// Package main repairs a dirty migration state. golang-migrate marks a version dirty when a
// migration is interrupted, and the server refuses to start until the flag is cleared. Inspect
// the schema by hand before running this: the interrupted migration may have been partially applied.
package main

import (
	"context"
	"log"
	"os"

	"github.com/shopdesk/shopdesk/internal/config"
	"github.com/shopdesk/shopdesk/internal/db"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.Connect(context.Background(), cfg.Database.GetDSN(), 1, 0)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	version, wasDirty, err := db.ClearDirtyMigration(database)
	if err != nil {
		log.Fatalf("Failed to fix migration state: %v", err)
	}
	if wasDirty {
		log.Printf("Cleared dirty flag on migration version %d", version)
	} else {
		log.Printf("Migration state is already clean (version %d)", version)
	}
}
