package storage

import (
	"context"
	"testing"
	"time"

	"github.com/GoldCode001/vela/internal/config"
)

// testContext creates a context with timeout for tests
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// testDB connects to a local Postgres for integration tests, skipping when
// unavailable.
func testDB(t *testing.T) *PostgresDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := &config.PostgresConfig{
		Host:           "localhost",
		Port:           "5432",
		Database:       "vela_test",
		User:           "postgres",
		Password:       "postgres",
		MaxConnections: 5,
	}

	db, err := NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping test - Postgres not available: %v", err)
	}
	t.Cleanup(db.Close)

	return db
}
