package optimizer

import (
	"context"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridtune/internal/metrics"
)

// Evaluator is the backtest execution collaborator: it runs one parameter
// combination over one window and returns a performance record. It must be
// safe to call concurrently for distinct inputs.
type Evaluator interface {
	Evaluate(ctx context.Context, combination Combination, window Window) (MetricsRecord, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(ctx context.Context, combination Combination, window Window) (MetricsRecord, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, combination Combination, window Window) (MetricsRecord, error) {
	return f(ctx, combination, window)
}

// EvaluatedCombination holds a combination, its per-window records, the
// per-metric mean across windows and the derived score. Never mutated after
// the driver publishes it, except for the Score assigned by the objective.
type EvaluatedCombination struct {
	Combination Combination
	Windows     []MetricsRecord
	Metrics     MetricsRecord
	Score       float64
}

// ProgressFunc receives evaluation progress: completed and total pair counts.
type ProgressFunc func(completed, total int)

// Driver fans (combination x window) pairs out to a worker pool, collects
// immutable records through a mutex-serialized collector and aggregates
// per-combination means. It is the sole coordination point of the run:
// workers share no mutable state beyond the collector.
type Driver struct {
	evaluator  Evaluator
	logger     *logrus.Logger
	workers    int
	timeout    time.Duration
	memo       *cache.Cache
	OnProgress ProgressFunc
}

// NewDriver creates an evaluation driver. workers <= 0 falls back to 1;
// timeout <= 0 disables the per-evaluation deadline.
func NewDriver(evaluator Evaluator, workers int, timeout time.Duration, logger *logrus.Logger) (*Driver, error) {
	if evaluator == nil {
		return nil, &ConfigurationError{Field: "evaluator", Value: nil, Reason: "an evaluation collaborator is required"}
	}
	if logger == nil {
		logger = logrus.New()
	}
	if workers <= 0 {
		workers = 1
	}
	return &Driver{
		evaluator: evaluator,
		logger:    logger,
		workers:   workers,
		timeout:   timeout,
		memo:      cache.New(cache.NoExpiration, cache.NoExpiration),
	}, nil
}

type pairResult struct {
	comboIdx int
	record   MetricsRecord
	err      error
}

// Run evaluates every distinct (combination, window) pair and returns the
// population of combinations that succeeded on at least one window. A pair
// failure is logged and excluded from that combination's mean; a combination
// failing on every window is dropped with a warning. Cancelling the context
// stops new work but leaves already-collected results valid.
func (d *Driver) Run(ctx context.Context, combinations []Combination, windows []Window) ([]*EvaluatedCombination, error) {
	type job struct {
		comboIdx int
		window   Window
	}

	jobs := make([]job, 0, len(combinations)*len(windows))
	seen := make(map[string]struct{}, len(combinations)*len(windows))
	for i, combo := range combinations {
		for _, window := range windows {
			key := pairKey(combo, window)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			jobs = append(jobs, job{comboIdx: i, window: window})
		}
	}

	var (
		mu        sync.Mutex
		perCombo  = make([][]MetricsRecord, len(combinations))
		completed int
	)

	jobCh := make(chan job)
	var wg sync.WaitGroup
	for w := 0; w < d.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				record, err := d.evaluateOne(ctx, combinations[j.comboIdx], j.window)

				mu.Lock()
				if err == nil {
					perCombo[j.comboIdx] = append(perCombo[j.comboIdx], record)
				}
				completed++
				done := completed
				mu.Unlock()

				if err != nil {
					d.logger.WithFields(logrus.Fields{
						"combination": combinations[j.comboIdx].Key(),
						"window":      j.window.Key(),
					}).WithError(err).Warn("Evaluation failed, excluding window from aggregate")
				}
				if d.OnProgress != nil {
					d.OnProgress(done, len(jobs))
				}
			}
		}()
	}

dispatch:
	for _, j := range jobs {
		select {
		case jobCh <- j:
		case <-ctx.Done():
			d.logger.WithError(ctx.Err()).Warn("Evaluation cancelled, keeping partial results")
			break dispatch
		}
	}
	close(jobCh)
	wg.Wait()

	population := make([]*EvaluatedCombination, 0, len(combinations))
	for i, records := range perCombo {
		if len(records) == 0 {
			d.logger.WithField("combination", combinations[i].Key()).Warn("All windows failed, dropping combination")
			continue
		}
		population = append(population, &EvaluatedCombination{
			Combination: combinations[i],
			Windows:     records,
			Metrics:     meanMetrics(records),
		})
	}

	metrics.UpdatePopulationSize(float64(len(population)))
	if len(population) == 0 {
		return nil, &EmptyPopulationError{Attempted: len(combinations)}
	}
	return population, nil
}

// EvaluateOne runs a single pair through the memoized evaluation path. Used
// by the sequential search driver and the validation runner so a pair is
// never executed twice within one driver lifetime.
func (d *Driver) EvaluateOne(ctx context.Context, combination Combination, window Window) (MetricsRecord, error) {
	return d.evaluateOne(ctx, combination, window)
}

func (d *Driver) evaluateOne(ctx context.Context, combination Combination, window Window) (MetricsRecord, error) {
	key := pairKey(combination, window)
	if cached, ok := d.memo.Get(key); ok {
		return cached.(MetricsRecord), nil
	}

	evalCtx := ctx
	cancel := func() {}
	if d.timeout > 0 {
		evalCtx, cancel = context.WithTimeout(ctx, d.timeout)
	}
	defer cancel()

	started := time.Now()
	record, err := d.evaluator.Evaluate(evalCtx, combination, window)
	elapsed := time.Since(started).Seconds()

	if err != nil {
		status := "failure"
		if evalCtx.Err() == context.DeadlineExceeded {
			status = "timeout"
		}
		metrics.RecordEvaluation(status, elapsed)
		return nil, &EvaluationError{Combination: combination.Key(), Window: window.Key(), Err: err}
	}

	metrics.RecordEvaluation("success", elapsed)
	d.memo.Set(key, record, cache.NoExpiration)
	return record, nil
}

func pairKey(combination Combination, window Window) string {
	return combination.Key() + "@" + window.Key()
}

// meanMetrics averages each metric across the windows where it is present.
func meanMetrics(records []MetricsRecord) MetricsRecord {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, record := range records {
		for name, v := range record {
			sums[name] += v
			counts[name]++
		}
	}
	mean := make(MetricsRecord, len(sums))
	for name, sum := range sums {
		mean[name] = sum / float64(counts[name])
	}
	return mean
}
