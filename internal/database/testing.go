package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SetupTestDB connects to the database named by GRIDTUNE_TEST_DSN and applies
// the schema. Tests that need a live database are skipped when the variable
// is unset.
func SetupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("GRIDTUNE_TEST_DSN")
	if dsn == "" {
		t.Skip("GRIDTUNE_TEST_DSN not set, skipping database test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("failed to create test database connection: %v", err)
	}

	db := &DB{pool: pool}
	if err := db.Ping(ctx); err != nil {
		t.Fatalf("failed to ping test database: %v", err)
	}
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("failed to apply test schema: %v", err)
	}
	return db
}

// TeardownTestDB closes the database connection cleanly
func TeardownTestDB(t *testing.T, db *DB) {
	t.Helper()
	db.Close()
}
