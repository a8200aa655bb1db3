package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/gridtune/internal/database"
)

// PostgresRunRepository implements RunRepository for PostgreSQL
type PostgresRunRepository struct {
	db *database.DB
}

// NewPostgresRunRepository creates a new run repository
func NewPostgresRunRepository(db *database.DB) RunRepository {
	return &PostgresRunRepository{db: db}
}

// Create inserts a new run in running state
func (r *PostgresRunRepository) Create(ctx context.Context, run *OptimizationRun) error {
	query := `
		INSERT INTO optimization_runs (id, symbol, mode, objective, grid_size, evaluations, windows, started_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.GetPool().Exec(ctx, query,
		run.ID, run.Symbol, run.Mode, run.Objective, run.GridSize,
		run.Evaluations, run.Windows, run.StartedAt, RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// Complete marks a run as finished with its final evaluation count
func (r *PostgresRunRepository) Complete(ctx context.Context, id uuid.UUID, evaluations int) error {
	query := `
		UPDATE optimization_runs
		SET status = $2, evaluations = $3, completed_at = $4
		WHERE id = $1
	`

	tag, err := r.db.GetPool().Exec(ctx, query, id, RunStatusCompleted, evaluations, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Fail marks a run as failed with the reason
func (r *PostgresRunRepository) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE optimization_runs
		SET status = $2, error = $3, completed_at = $4
		WHERE id = $1
	`

	tag, err := r.db.GetPool().Exec(ctx, query, id, RunStatusFailed, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark run failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID retrieves a run by ID
func (r *PostgresRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*OptimizationRun, error) {
	query := `
		SELECT id, symbol, mode, objective, grid_size, evaluations, windows, started_at, completed_at, status, error
		FROM optimization_runs WHERE id = $1
	`

	run := &OptimizationRun{}
	err := r.db.GetPool().QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Symbol, &run.Mode, &run.Objective, &run.GridSize,
		&run.Evaluations, &run.Windows, &run.StartedAt, &run.CompletedAt, &run.Status, &run.Error,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRecent retrieves the most recent runs for a symbol, newest first. An
// empty symbol lists runs across all symbols.
func (r *PostgresRunRepository) ListRecent(ctx context.Context, symbol string, limit int) ([]*OptimizationRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, symbol, mode, objective, grid_size, evaluations, windows, started_at, completed_at, status, error
		FROM optimization_runs
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.GetPool().Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*OptimizationRun
	for rows.Next() {
		run := &OptimizationRun{}
		if err := rows.Scan(
			&run.ID, &run.Symbol, &run.Mode, &run.Objective, &run.GridSize,
			&run.Evaluations, &run.Windows, &run.StartedAt, &run.CompletedAt, &run.Status, &run.Error,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
