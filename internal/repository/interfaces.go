package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// OptimizationRun is one persisted optimization execution.
type OptimizationRun struct {
	ID          uuid.UUID  `json:"id"`
	Symbol      string     `json:"symbol"`
	Mode        string     `json:"mode"`
	Objective   string     `json:"objective"`
	GridSize    int        `json:"grid_size"`
	Evaluations int        `json:"evaluations"`
	Windows     int        `json:"windows"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"`
	Error       *string    `json:"error,omitempty"`
}

// RunRanking is one combination's final position in a run.
type RunRanking struct {
	RunID          uuid.UUID              `json:"run_id"`
	Rank           int                    `json:"rank"`
	CombinationKey string                 `json:"combination_key"`
	Parameters     map[string]interface{} `json:"parameters"`
	Score          float64                `json:"score"`
	Metrics        map[string]float64     `json:"metrics"`
}

// RunSelection is the combination chosen at the end of a run.
type RunSelection struct {
	RunID          uuid.UUID              `json:"run_id"`
	Strategy       string                 `json:"strategy"`
	CombinationKey string                 `json:"combination_key"`
	Parameters     map[string]interface{} `json:"parameters"`
	Score          float64                `json:"score"`
	Diagnostics    map[string]interface{} `json:"diagnostics,omitempty"`
	ValidationMean *float64               `json:"validation_mean,omitempty"`
	ValidationStd  *float64               `json:"validation_std,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
}

// RunRepository persists optimization run lifecycles
type RunRepository interface {
	Create(ctx context.Context, run *OptimizationRun) error
	Complete(ctx context.Context, id uuid.UUID, evaluations int) error
	Fail(ctx context.Context, id uuid.UUID, reason string) error
	GetByID(ctx context.Context, id uuid.UUID) (*OptimizationRun, error)
	ListRecent(ctx context.Context, symbol string, limit int) ([]*OptimizationRun, error)
}

// RankingRepository persists ranked populations
type RankingRepository interface {
	SaveAll(ctx context.Context, rankings []*RunRanking) error
	GetByRunID(ctx context.Context, runID uuid.UUID, limit int) ([]*RunRanking, error)
}

// SelectionRepository persists final selections
type SelectionRepository interface {
	Save(ctx context.Context, selection *RunSelection) error
	GetByRunID(ctx context.Context, runID uuid.UUID) (*RunSelection, error)
}
