package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/gridtune/internal/database"
)

func setupRepos(t *testing.T) (*Repositories, func()) {
	t.Helper()
	db := database.SetupTestDB(t)
	repos, err := NewRepositories(db)
	if err != nil {
		t.Fatalf("failed to create repositories: %v", err)
	}
	return repos, func() { database.TeardownTestDB(t, db) }
}

func sampleRun() *OptimizationRun {
	return &OptimizationRun{
		ID:        uuid.New(),
		Symbol:    "AAPL",
		Mode:      "walk-forward",
		Objective: "sharpe",
		GridSize:  36,
		Windows:   3,
		StartedAt: time.Now().UTC().Truncate(time.Millisecond),
		Status:    RunStatusRunning,
	}
}

func TestNewRepositoriesRequiresDB(t *testing.T) {
	if _, err := NewRepositories(nil); err == nil {
		t.Fatal("expected error without database")
	}
}

func TestRunLifecycle(t *testing.T) {
	repos, teardown := setupRepos(t)
	defer teardown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	run := sampleRun()
	if err := repos.Run.Create(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	retrieved, err := repos.Run.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to retrieve run: %v", err)
	}
	if retrieved.Status != RunStatusRunning || retrieved.Symbol != "AAPL" {
		t.Fatalf("unexpected run: %+v", retrieved)
	}

	if err := repos.Run.Complete(ctx, run.ID, 36); err != nil {
		t.Fatalf("failed to complete run: %v", err)
	}

	retrieved, err = repos.Run.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to retrieve completed run: %v", err)
	}
	if retrieved.Status != RunStatusCompleted || retrieved.Evaluations != 36 {
		t.Fatalf("expected completed run with 36 evaluations, got %+v", retrieved)
	}
	if retrieved.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}
}

func TestRunFailRecordsReason(t *testing.T) {
	repos, teardown := setupRepos(t)
	defer teardown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	run := sampleRun()
	if err := repos.Run.Create(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}
	if err := repos.Run.Fail(ctx, run.ID, "no evaluations succeeded"); err != nil {
		t.Fatalf("failed to mark run failed: %v", err)
	}

	retrieved, err := repos.Run.GetByID(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to retrieve run: %v", err)
	}
	if retrieved.Status != RunStatusFailed || retrieved.Error == nil {
		t.Fatalf("expected failed run with reason, got %+v", retrieved)
	}
}

func TestRunGetByIDNotFound(t *testing.T) {
	repos, teardown := setupRepos(t)
	defer teardown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := repos.Run.GetByID(ctx, uuid.New()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRankingsRoundTrip(t *testing.T) {
	repos, teardown := setupRepos(t)
	defer teardown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	run := sampleRun()
	if err := repos.Run.Create(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	rankings := []*RunRanking{
		{
			RunID:          run.ID,
			Rank:           1,
			CombinationKey: "fast_period=5,slow_period=50",
			Parameters:     map[string]interface{}{"fast_period": 5, "slow_period": 50},
			Score:          1.42,
			Metrics:        map[string]float64{"sharpe": 1.42, "max_drawdown": 0.11},
		},
		{
			RunID:          run.ID,
			Rank:           2,
			CombinationKey: "fast_period=10,slow_period=50",
			Parameters:     map[string]interface{}{"fast_period": 10, "slow_period": 50},
			Score:          0.97,
			Metrics:        map[string]float64{"sharpe": 0.97},
		},
	}
	if err := repos.Ranking.SaveAll(ctx, rankings); err != nil {
		t.Fatalf("failed to save rankings: %v", err)
	}

	retrieved, err := repos.Ranking.GetByRunID(ctx, run.ID, 10)
	if err != nil {
		t.Fatalf("failed to retrieve rankings: %v", err)
	}
	if len(retrieved) != 2 {
		t.Fatalf("expected 2 rankings, got %d", len(retrieved))
	}
	if retrieved[0].Rank != 1 || retrieved[0].Score != 1.42 {
		t.Fatalf("unexpected top ranking: %+v", retrieved[0])
	}
	if retrieved[0].Metrics["max_drawdown"] != 0.11 {
		t.Fatalf("expected metrics to survive round trip: %+v", retrieved[0].Metrics)
	}
}

func TestSelectionUpsert(t *testing.T) {
	repos, teardown := setupRepos(t)
	defer teardown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	run := sampleRun()
	if err := repos.Run.Create(ctx, run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	mean := 1.3
	selection := &RunSelection{
		RunID:          run.ID,
		Strategy:       "robust",
		CombinationKey: "fast_period=5,slow_period=50",
		Parameters:     map[string]interface{}{"fast_period": 5, "slow_period": 50},
		Score:          1.42,
		ValidationMean: &mean,
	}
	if err := repos.Selection.Save(ctx, selection); err != nil {
		t.Fatalf("failed to save selection: %v", err)
	}

	// saving again replaces rather than conflicting
	selection.Strategy = "plateau"
	if err := repos.Selection.Save(ctx, selection); err != nil {
		t.Fatalf("failed to upsert selection: %v", err)
	}

	retrieved, err := repos.Selection.GetByRunID(ctx, run.ID)
	if err != nil {
		t.Fatalf("failed to retrieve selection: %v", err)
	}
	if retrieved.Strategy != "plateau" {
		t.Fatalf("expected upserted strategy, got %s", retrieved.Strategy)
	}
	if retrieved.ValidationMean == nil || *retrieved.ValidationMean != 1.3 {
		t.Fatalf("expected validation mean 1.3, got %v", retrieved.ValidationMean)
	}
}
