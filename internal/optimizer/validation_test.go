package optimizer

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestValidateSelectionStability(t *testing.T) {
	eval := EvaluatorFunc(func(ctx context.Context, c Combination, w Window) (MetricsRecord, error) {
		if w.TestStart.Day() == 1 {
			return MetricsRecord{"sharpe": 1.0}, nil
		}
		return MetricsRecord{"sharpe": 3.0}, nil
	})
	d := testDriver(t, eval, 2, 0)

	combo := NewCombination(map[string]interface{}{"x": 1})
	report, err := ValidateSelection(context.Background(), d, combo, "sharpe", twoWindows(), quietLogger())
	if err != nil {
		t.Fatalf("ValidateSelection failed: %v", err)
	}
	if report.Metric != "sharpe" {
		t.Fatalf("expected metric name preserved, got %s", report.Metric)
	}
	if len(report.Windows) != 2 {
		t.Fatalf("expected 2 window scores, got %d", len(report.Windows))
	}
	if math.Abs(report.Mean-2.0) > floatTolerance {
		t.Fatalf("expected mean 2.0, got %v", report.Mean)
	}
	if math.Abs(report.Std-1.0) > floatTolerance {
		t.Fatalf("expected std 1.0, got %v", report.Std)
	}
}

func TestValidateSelectionSkipsFailedWindows(t *testing.T) {
	eval := EvaluatorFunc(func(ctx context.Context, c Combination, w Window) (MetricsRecord, error) {
		if w.TestStart.Day() != 1 {
			return nil, errors.New("missing bars")
		}
		return MetricsRecord{"sharpe": 1.5}, nil
	})
	d := testDriver(t, eval, 1, 0)

	combo := NewCombination(map[string]interface{}{"x": 1})
	report, err := ValidateSelection(context.Background(), d, combo, "sharpe", twoWindows(), quietLogger())
	if err != nil {
		t.Fatalf("ValidateSelection failed: %v", err)
	}
	if len(report.Windows) != 1 {
		t.Fatalf("expected failed window to be skipped, got %d scores", len(report.Windows))
	}
	if report.Mean != 1.5 || report.Std != 0 {
		t.Fatalf("expected mean 1.5 and std 0, got %v and %v", report.Mean, report.Std)
	}
}

func TestValidateSelectionAllWindowsFail(t *testing.T) {
	eval := EvaluatorFunc(func(ctx context.Context, c Combination, w Window) (MetricsRecord, error) {
		return nil, errors.New("broken feed")
	})
	d := testDriver(t, eval, 1, 0)

	combo := NewCombination(map[string]interface{}{"x": 1})
	_, err := ValidateSelection(context.Background(), d, combo, "sharpe", twoWindows(), quietLogger())
	var emptyErr *EmptyPopulationError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyPopulationError, got %v", err)
	}
}
