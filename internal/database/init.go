package database

import (
	"context"
	"fmt"

	"github.com/yourusername/gridtune/internal/config"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS optimization_runs (
		id UUID PRIMARY KEY,
		symbol TEXT NOT NULL,
		mode TEXT NOT NULL,
		objective TEXT NOT NULL,
		grid_size INTEGER NOT NULL,
		evaluations INTEGER NOT NULL,
		windows INTEGER NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		status TEXT NOT NULL DEFAULT 'running',
		error TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS run_rankings (
		run_id UUID NOT NULL REFERENCES optimization_runs(id) ON DELETE CASCADE,
		rank INTEGER NOT NULL,
		combination_key TEXT NOT NULL,
		parameters JSONB NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		metrics JSONB NOT NULL,
		PRIMARY KEY (run_id, rank)
	)`,
	`CREATE TABLE IF NOT EXISTS run_selections (
		run_id UUID PRIMARY KEY REFERENCES optimization_runs(id) ON DELETE CASCADE,
		strategy TEXT NOT NULL,
		combination_key TEXT NOT NULL,
		parameters JSONB NOT NULL,
		score DOUBLE PRECISION NOT NULL,
		diagnostics JSONB,
		validation_mean DOUBLE PRECISION,
		validation_std DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_optimization_runs_symbol ON optimization_runs (symbol, started_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_run_rankings_score ON run_rankings (run_id, score DESC)`,
}

// Initialize creates a database connection pool and ensures the schema exists
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema applies the run persistence schema idempotently.
func EnsureSchema(ctx context.Context, db *DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
