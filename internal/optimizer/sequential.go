package optimizer

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridtune/internal/metrics"
)

// SelectSequential labels results produced by the sequential search driver.
// It is not a Selector strategy: the search process itself is the reduction.
const SelectSequential SelectionStrategy = "sequential"

// Proposer is the probabilistic-optimization collaborator for sequential
// search: it proposes the next point in the unit hypercube and learns from
// observed scores. Implementations keep their own history and random state.
type Proposer interface {
	Propose() []float64
	Observe(point []float64, score float64)
}

// SequentialSearch iteratively proposes combinations through a surrogate
// model and converges to one answer without a Selector stage. Proposals are
// inherently sequential: each depends on all prior observations.
type SequentialSearch struct {
	driver    *Driver
	grid      *GridSpec
	objective *Objective
	proposer  Proposer
	nCalls    int
	logger    *logrus.Logger
}

// NewSequentialSearch validates the mode eagerly: a proposer must be wired
// in, and the objective must be a single metric. Composite scores are
// population-relative and cannot serve as an incremental objective.
func NewSequentialSearch(driver *Driver, grid *GridSpec, objective *Objective, proposer Proposer, nCalls int, logger *logrus.Logger) (*SequentialSearch, error) {
	if proposer == nil {
		return nil, &MissingOptionalDependencyError{Capability: "sequential search (surrogate proposer)"}
	}
	if objective.Composite() {
		return nil, &ConfigurationError{Field: "objective", Value: "composite", Reason: "sequential search needs a single-metric objective"}
	}
	if nCalls < 1 {
		return nil, &ConfigurationError{Field: "bayesian.n_calls", Value: nCalls, Reason: "must be at least 1"}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &SequentialSearch{
		driver:    driver,
		grid:      grid,
		objective: objective,
		proposer:  proposer,
		nCalls:    nCalls,
		logger:    logger,
	}, nil
}

// Run executes nCalls propose/evaluate/observe iterations over the window
// and returns the best observed combination.
func (s *SequentialSearch) Run(ctx context.Context, window Window) (SelectionResult, error) {
	var (
		best      *Combination
		bestScore = math.Inf(-1)
		observed  int
	)

	for i := 0; i < s.nCalls; i++ {
		if ctx.Err() != nil {
			s.logger.WithError(ctx.Err()).Warn("Sequential search cancelled, keeping best observation so far")
			break
		}

		point := s.proposer.Propose()
		combination := s.combinationAtPoint(point)
		metrics.RecordSequentialProposal()

		record, err := s.driver.EvaluateOne(ctx, combination, window)
		score := math.Inf(-1)
		if err != nil {
			s.logger.WithField("combination", combination.Key()).WithError(err).Warn("Sequential evaluation failed")
		} else {
			score = s.objective.ScoreRecord(record)
			observed++
		}
		s.proposer.Observe(point, score)

		if score > bestScore {
			bestScore = score
			chosen := combination
			best = &chosen
		}
	}

	if best == nil {
		return SelectionResult{}, &EmptyPopulationError{Attempted: s.nCalls}
	}
	metrics.UpdateBestScore(string(SelectSequential), bestScore)
	return SelectionResult{
		Combination: *best,
		Strategy:    SelectSequential,
		Score:       bestScore,
		Diagnostics: map[string]interface{}{"calls": s.nCalls, "observed": observed},
	}, nil
}

// combinationAtPoint snaps a unit-hypercube point onto the grid: each
// dimension indexes the declared value list of one searched parameter.
func (s *SequentialSearch) combinationAtPoint(point []float64) Combination {
	values := make(map[string]interface{}, len(s.grid.params))
	for i, name := range s.grid.searched {
		candidates := s.grid.params[name].Values
		x := 0.0
		if i < len(point) {
			x = math.Max(0, math.Min(1, point[i]))
		}
		idx := int(math.Round(x * float64(len(candidates)-1)))
		values[name] = candidates[idx]
	}
	for _, name := range s.grid.fixed {
		values[name] = s.grid.params[name].Fixed
	}
	return NewCombination(values)
}

// Dimensions returns the proposer search-space dimensionality.
func (s *SequentialSearch) Dimensions() int {
	return len(s.grid.searched)
}
