package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/gridtune/internal/database"
)

// PostgresRankingRepository implements RankingRepository for PostgreSQL
type PostgresRankingRepository struct {
	db *database.DB
}

// NewPostgresRankingRepository creates a new ranking repository
func NewPostgresRankingRepository(db *database.DB) RankingRepository {
	return &PostgresRankingRepository{db: db}
}

// SaveAll inserts a run's full ranked population in one transaction.
func (r *PostgresRankingRepository) SaveAll(ctx context.Context, rankings []*RunRanking) error {
	if len(rankings) == 0 {
		return nil
	}

	query := `
		INSERT INTO run_rankings (run_id, rank, combination_key, parameters, score, metrics)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, ranking := range rankings {
			params, err := json.Marshal(ranking.Parameters)
			if err != nil {
				return fmt.Errorf("failed to encode parameters: %w", err)
			}
			metrics, err := json.Marshal(ranking.Metrics)
			if err != nil {
				return fmt.Errorf("failed to encode metrics: %w", err)
			}
			batch.Queue(query, ranking.RunID, ranking.Rank, ranking.CombinationKey, params, ranking.Score, metrics)
		}

		results := tx.SendBatch(ctx, batch)
		defer results.Close()

		for range rankings {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to insert ranking: %w", err)
			}
		}
		return nil
	})
}

// GetByRunID retrieves the top rankings for a run in rank order
func (r *PostgresRankingRepository) GetByRunID(ctx context.Context, runID uuid.UUID, limit int) ([]*RunRanking, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT run_id, rank, combination_key, parameters, score, metrics
		FROM run_rankings
		WHERE run_id = $1
		ORDER BY rank ASC
		LIMIT $2
	`

	rows, err := r.db.GetPool().Query(ctx, query, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rankings: %w", err)
	}
	defer rows.Close()

	var rankings []*RunRanking
	for rows.Next() {
		ranking := &RunRanking{}
		var params, metrics []byte
		if err := rows.Scan(&ranking.RunID, &ranking.Rank, &ranking.CombinationKey, &params, &ranking.Score, &metrics); err != nil {
			return nil, fmt.Errorf("failed to scan ranking: %w", err)
		}
		if err := json.Unmarshal(params, &ranking.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
		if err := json.Unmarshal(metrics, &ranking.Metrics); err != nil {
			return nil, fmt.Errorf("failed to decode metrics: %w", err)
		}
		rankings = append(rankings, ranking)
	}
	return rankings, rows.Err()
}
