// Package main provides a CLI tool for running database migrations.
package main

import (
	"flag"
	"log"

	"github.com/GoldCode001/vela/internal/config"
	"github.com/GoldCode001/vela/internal/storage"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version")
		path   = flag.String("path", "migrations/postgres", "Path to migration files")
	)
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	databaseURL := cfg.Database.Postgres.PostgresURL()

	switch *action {
	case "up":
		log.Println("Running migrations...")
		if err := storage.RunMigrations(databaseURL, *path); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Println("Migrations completed successfully")

	case "down":
		log.Println("Rolling back migration...")
		if err := storage.RollbackMigrations(databaseURL, *path); err != nil {
			log.Fatalf("Rollback failed: %v", err)
		}
		log.Println("Migration rolled back successfully")

	case "version":
		version, dirty, err := storage.MigrationVersion(databaseURL, *path)
		if err != nil {
			log.Fatalf("Failed to read migration version: %v", err)
		}
		log.Printf("Current migration version: %d (dirty: %v)", version, dirty)

	default:
		log.Fatalf("Unknown action: %s", *action)
	}
}
