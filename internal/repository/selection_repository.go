package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/gridtune/internal/database"
)

// PostgresSelectionRepository implements SelectionRepository for PostgreSQL
type PostgresSelectionRepository struct {
	db *database.DB
}

// NewPostgresSelectionRepository creates a new selection repository
func NewPostgresSelectionRepository(db *database.DB) SelectionRepository {
	return &PostgresSelectionRepository{db: db}
}

// Save upserts the selection for a run
func (s *PostgresSelectionRepository) Save(ctx context.Context, selection *RunSelection) error {
	params, err := json.Marshal(selection.Parameters)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	var diagnostics []byte
	if selection.Diagnostics != nil {
		diagnostics, err = json.Marshal(selection.Diagnostics)
		if err != nil {
			return fmt.Errorf("failed to encode diagnostics: %w", err)
		}
	}

	query := `
		INSERT INTO run_selections (run_id, strategy, combination_key, parameters, score, diagnostics,
		                            validation_mean, validation_std, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			strategy = EXCLUDED.strategy,
			combination_key = EXCLUDED.combination_key,
			parameters = EXCLUDED.parameters,
			score = EXCLUDED.score,
			diagnostics = EXCLUDED.diagnostics,
			validation_mean = EXCLUDED.validation_mean,
			validation_std = EXCLUDED.validation_std
	`

	createdAt := selection.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.GetPool().Exec(ctx, query,
		selection.RunID, selection.Strategy, selection.CombinationKey, params, selection.Score,
		diagnostics, selection.ValidationMean, selection.ValidationStd, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	return nil
}

// GetByRunID retrieves the selection for a run
func (s *PostgresSelectionRepository) GetByRunID(ctx context.Context, runID uuid.UUID) (*RunSelection, error) {
	query := `
		SELECT run_id, strategy, combination_key, parameters, score, diagnostics,
		       validation_mean, validation_std, created_at
		FROM run_selections WHERE run_id = $1
	`

	selection := &RunSelection{}
	var params, diagnostics []byte
	err := s.db.GetPool().QueryRow(ctx, query, runID).Scan(
		&selection.RunID, &selection.Strategy, &selection.CombinationKey, &params, &selection.Score,
		&diagnostics, &selection.ValidationMean, &selection.ValidationStd, &selection.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get selection: %w", err)
	}

	if err := json.Unmarshal(params, &selection.Parameters); err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}
	if diagnostics != nil {
		if err := json.Unmarshal(diagnostics, &selection.Diagnostics); err != nil {
			return nil, fmt.Errorf("failed to decode diagnostics: %w", err)
		}
	}
	return selection, nil
}
