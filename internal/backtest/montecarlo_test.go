package backtest

import (
	"context"
	"math"
	"testing"
)

func TestRunMonteCarloAllWinners(t *testing.T) {
	trades := []Trade{{PnL: 100}, {PnL: 200}, {PnL: 50}}
	cfg := MonteCarloConfig{Iterations: 500, Seed: 42, InitialCash: 10000}

	result, err := RunMonteCarlo(context.Background(), trades, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Iterations != 500 || len(result.Distribution) != 500 {
		t.Fatalf("unexpected iteration count: %+v", result.Iterations)
	}
	if result.ProbabilityOfProfit != 1.0 {
		t.Fatalf("expected certain profit with only winning trades, got %v", result.ProbabilityOfProfit)
	}
	if result.ProbabilityOfRuin != 0 {
		t.Fatalf("expected zero ruin probability, got %v", result.ProbabilityOfRuin)
	}
	if result.MeanReturn <= 0 {
		t.Fatalf("expected positive mean return, got %v", result.MeanReturn)
	}
}

func TestRunMonteCarloReproducibleWithSeed(t *testing.T) {
	trades := []Trade{{PnL: 100}, {PnL: -80}, {PnL: 40}, {PnL: -60}}
	cfg := MonteCarloConfig{Iterations: 200, Seed: 7, InitialCash: 5000}

	first, err := RunMonteCarlo(context.Background(), trades, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := RunMonteCarlo(context.Background(), trades, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(first.MeanReturn-second.MeanReturn) > 1e-12 {
		t.Fatalf("expected identical runs for same seed: %v vs %v", first.MeanReturn, second.MeanReturn)
	}
	for i := range first.Distribution {
		if first.Distribution[i] != second.Distribution[i] {
			t.Fatalf("distributions diverge at %d", i)
		}
	}
}

func TestRunMonteCarloRuinDetection(t *testing.T) {
	// a single catastrophic trade larger than the bankroll
	trades := []Trade{{PnL: -20000}}
	cfg := MonteCarloConfig{Iterations: 100, Seed: 1, InitialCash: 10000}

	result, err := RunMonteCarlo(context.Background(), trades, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ProbabilityOfRuin != 1.0 {
		t.Fatalf("expected certain ruin, got %v", result.ProbabilityOfRuin)
	}
}

func TestRunMonteCarloRequiresTrades(t *testing.T) {
	cfg := MonteCarloConfig{Iterations: 100, Seed: 1, InitialCash: 10000}
	if _, err := RunMonteCarlo(context.Background(), nil, cfg); err == nil {
		t.Fatal("expected error without trades")
	}
}

func TestRunMonteCarloRequiresCash(t *testing.T) {
	cfg := MonteCarloConfig{Iterations: 100, Seed: 1}
	if _, err := RunMonteCarlo(context.Background(), []Trade{{PnL: 1}}, cfg); err == nil {
		t.Fatal("expected error without initial cash")
	}
}

func TestConfidenceIntervalsWidenWithLevel(t *testing.T) {
	distribution := make([]float64, 101)
	for i := range distribution {
		distribution[i] = float64(i)
	}

	intervals := CalculateConfidenceIntervals(distribution, []float64{0.9, 0.99})
	if intervals["99%"] <= intervals["90%"] {
		t.Fatalf("expected wider interval at higher confidence: %v", intervals)
	}
}

func TestPercentileBounds(t *testing.T) {
	values := []float64{3, 1, 2}
	if got := percentile(values, 0); got != 1 {
		t.Fatalf("expected min at p=0, got %v", got)
	}
	if got := percentile(values, 1); got != 3 {
		t.Fatalf("expected max at p=1, got %v", got)
	}
	if got := percentile(nil, 0.5); got != 0 {
		t.Fatalf("expected 0 for empty input, got %v", got)
	}
}
