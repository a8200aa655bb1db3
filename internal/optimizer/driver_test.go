package optimizer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testDriver(t *testing.T, eval Evaluator, workers int, timeout time.Duration) *Driver {
	t.Helper()
	d, err := NewDriver(eval, workers, timeout, quietLogger())
	if err != nil {
		t.Fatalf("NewDriver failed: %v", err)
	}
	return d
}

func twoWindows() []Window {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Window{
		{TestStart: start, TestEnd: start.AddDate(0, 0, 100)},
		{TestStart: start.AddDate(0, 0, 100), TestEnd: start.AddDate(0, 0, 200)},
	}
}

func TestDriverAggregatesWindowMeans(t *testing.T) {
	eval := EvaluatorFunc(func(ctx context.Context, c Combination, w Window) (MetricsRecord, error) {
		v, _ := c.Float("x")
		bonus := 0.0
		if w.TestStart.Day() != 1 {
			bonus = 1.0
		}
		return MetricsRecord{"sharpe": v + bonus}, nil
	})
	d := testDriver(t, eval, 4, 0)

	combos := []Combination{
		NewCombination(map[string]interface{}{"x": 1.0}),
		NewCombination(map[string]interface{}{"x": 3.0}),
	}
	pop, err := d.Run(context.Background(), combos, twoWindows())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(pop) != 2 {
		t.Fatalf("expected 2 evaluated combinations, got %d", len(pop))
	}
	for _, ec := range pop {
		v, _ := ec.Combination.Float("x")
		want := v + 0.5
		if math.Abs(ec.Metrics["sharpe"]-want) > floatTolerance {
			t.Fatalf("expected mean %v for x=%v, got %v", want, v, ec.Metrics["sharpe"])
		}
		if len(ec.Windows) != 2 {
			t.Fatalf("expected 2 window records, got %d", len(ec.Windows))
		}
	}
}

func TestDriverPartialWindowFailure(t *testing.T) {
	eval := EvaluatorFunc(func(ctx context.Context, c Combination, w Window) (MetricsRecord, error) {
		if w.TestStart.Day() != 1 {
			return nil, errors.New("not enough bars")
		}
		return MetricsRecord{"sharpe": 2.0}, nil
	})
	d := testDriver(t, eval, 2, 0)

	combos := []Combination{NewCombination(map[string]interface{}{"x": 1})}
	pop, err := d.Run(context.Background(), combos, twoWindows())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(pop) != 1 {
		t.Fatalf("expected combination to survive partial failure")
	}
	if len(pop[0].Windows) != 1 {
		t.Fatalf("expected failed window to be excluded, got %d records", len(pop[0].Windows))
	}
	if pop[0].Metrics["sharpe"] != 2.0 {
		t.Fatalf("mean should cover surviving windows only, got %v", pop[0].Metrics["sharpe"])
	}
}

func TestDriverDropsFullyFailedCombination(t *testing.T) {
	eval := EvaluatorFunc(func(ctx context.Context, c Combination, w Window) (MetricsRecord, error) {
		if v, _ := c.Int("x"); v == 2 {
			return nil, errors.New("degenerate parameters")
		}
		return MetricsRecord{"sharpe": 1.0}, nil
	})
	d := testDriver(t, eval, 2, 0)

	combos := []Combination{
		NewCombination(map[string]interface{}{"x": 1}),
		NewCombination(map[string]interface{}{"x": 2}),
	}
	pop, err := d.Run(context.Background(), combos, twoWindows())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(pop) != 1 {
		t.Fatalf("expected fully-failed combination to be dropped, got %d", len(pop))
	}
	if v, _ := pop[0].Combination.Int("x"); v != 1 {
		t.Fatalf("wrong survivor: x=%d", v)
	}
}

func TestDriverEmptyPopulation(t *testing.T) {
	eval := EvaluatorFunc(func(ctx context.Context, c Combination, w Window) (MetricsRecord, error) {
		return nil, errors.New("broken feed")
	})
	d := testDriver(t, eval, 2, 0)

	combos := []Combination{NewCombination(map[string]interface{}{"x": 1})}
	_, err := d.Run(context.Background(), combos, twoWindows())
	var emptyErr *EmptyPopulationError
	if !errors.As(err, &emptyErr) {
		t.Fatalf("expected EmptyPopulationError, got %v", err)
	}
	if emptyErr.Attempted != 1 {
		t.Fatalf("expected attempted count 1, got %d", emptyErr.Attempted)
	}
}

func TestDriverNeverEvaluatesPairTwice(t *testing.T) {
	var calls int64
	eval := EvaluatorFunc(func(ctx context.Context, c Combination, w Window) (MetricsRecord, error) {
		atomic.AddInt64(&calls, 1)
		return MetricsRecord{"sharpe": 1.0}, nil
	})
	d := testDriver(t, eval, 4, 0)

	combo := NewCombination(map[string]interface{}{"x": 1})
	combos := []Combination{combo, combo, combo}
	windows := twoWindows()

	if _, err := d.Run(context.Background(), combos, windows); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// memoized EvaluateOne must not re-run either
	if _, err := d.EvaluateOne(context.Background(), combo, windows[0]); err != nil {
		t.Fatalf("EvaluateOne failed: %v", err)
	}
	if got := atomic.LoadInt64(&calls); got != 2 {
		t.Fatalf("expected 2 underlying evaluations (one per window), got %d", got)
	}
}

func TestDriverTimeoutWrapsEvaluationError(t *testing.T) {
	eval := EvaluatorFunc(func(ctx context.Context, c Combination, w Window) (MetricsRecord, error) {
		select {
		case <-time.After(2 * time.Second):
			return MetricsRecord{"sharpe": 1}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	d := testDriver(t, eval, 1, 10*time.Millisecond)

	combo := NewCombination(map[string]interface{}{"x": 1})
	_, err := d.EvaluateOne(context.Background(), combo, twoWindows()[0])
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %v", err)
	}
}

func TestDriverCancellationKeepsPartialResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int64
	eval := EvaluatorFunc(func(ctx context.Context, c Combination, w Window) (MetricsRecord, error) {
		if atomic.AddInt64(&calls, 1) == 1 {
			cancel()
			return MetricsRecord{"sharpe": 1.0}, nil
		}
		return MetricsRecord{"sharpe": 1.0}, nil
	})
	d := testDriver(t, eval, 1, 0)

	combos := make([]Combination, 50)
	for i := range combos {
		combos[i] = NewCombination(map[string]interface{}{"x": i})
	}
	windows := twoWindows()[:1]

	pop, err := d.Run(ctx, combos, windows)
	if err != nil {
		t.Fatalf("expected partial population, got error: %v", err)
	}
	if len(pop) == 0 || len(pop) == len(combos) {
		t.Fatalf("expected a strict subset of combinations, got %d of %d", len(pop), len(combos))
	}
}

func TestDriverProgressCallback(t *testing.T) {
	eval := EvaluatorFunc(func(ctx context.Context, c Combination, w Window) (MetricsRecord, error) {
		return MetricsRecord{"sharpe": 1.0}, nil
	})
	d := testDriver(t, eval, 1, 0)

	var last int64
	d.OnProgress = func(completed, total int) {
		atomic.StoreInt64(&last, int64(completed))
		if total != 4 {
			panic(fmt.Sprintf("unexpected total %d", total))
		}
	}

	combos := []Combination{
		NewCombination(map[string]interface{}{"x": 1}),
		NewCombination(map[string]interface{}{"x": 2}),
	}
	if _, err := d.Run(context.Background(), combos, twoWindows()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if atomic.LoadInt64(&last) != 4 {
		t.Fatalf("expected final progress 4, got %d", last)
	}
}
