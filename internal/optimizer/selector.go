package optimizer

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridtune/internal/metrics"
)

// SelectionStrategy is the closed set of reduction strategies.
type SelectionStrategy string

const (
	SelectBest        SelectionStrategy = "best"
	SelectPlateau     SelectionStrategy = "plateau"
	SelectPlateauFreq SelectionStrategy = "plateau_freq"
	SelectPlateauKDE  SelectionStrategy = "plateau_kde"
	SelectCluster     SelectionStrategy = "cluster"
	SelectRobust      SelectionStrategy = "robust"
)

// ParseSelectionStrategy validates a strategy name from configuration.
func ParseSelectionStrategy(name string) (SelectionStrategy, error) {
	switch SelectionStrategy(name) {
	case SelectBest, SelectPlateau, SelectPlateauFreq, SelectPlateauKDE, SelectCluster, SelectRobust:
		return SelectionStrategy(name), nil
	default:
		return "", &ConfigurationError{Field: "selection.strategy", Value: name, Reason: "unknown selection strategy"}
	}
}

// SelectionConfig carries the strategy name and its tunables, validated
// eagerly at selector construction.
type SelectionConfig struct {
	Strategy         SelectionStrategy
	PlateauTopPct    float64
	PlateauThreshold *float64
	RobustAlpha      float64
	RobustRadius     int
	NClusters        int
	Seed             int64
}

// Validate checks every tunable the configured strategy depends on.
func (c SelectionConfig) Validate() error {
	if _, err := ParseSelectionStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.PlateauTopPct <= 0 || c.PlateauTopPct > 1 {
		return &ConfigurationError{Field: "selection.plateau_top_pct", Value: c.PlateauTopPct, Reason: "must be in (0, 1]"}
	}
	if c.RobustAlpha < 0 {
		return &ConfigurationError{Field: "selection.robust_alpha", Value: c.RobustAlpha, Reason: "must not be negative"}
	}
	if c.RobustRadius < 1 {
		return &ConfigurationError{Field: "selection.robust_radius", Value: c.RobustRadius, Reason: "must be at least 1"}
	}
	if c.NClusters < 1 {
		return &ConfigurationError{Field: "selection.n_clusters", Value: c.NClusters, Reason: "must be at least 1"}
	}
	return nil
}

// SelectionResult is the terminal choice of a run: the chosen combination,
// the strategy that produced it and strategy-specific diagnostics.
type SelectionResult struct {
	Combination Combination            `json:"combination"`
	Strategy    SelectionStrategy      `json:"strategy"`
	Score       float64                `json:"score"`
	Diagnostics map[string]interface{} `json:"diagnostics,omitempty"`
}

// DensityEstimator fits a density over points and evaluates it at query
// points. Wired in from a numeric backend; plateau_kde fails fast without it.
type DensityEstimator interface {
	Density(points [][]float64, at [][]float64) ([]float64, error)
}

// Clusterer partitions points into k groups and returns per-point
// assignments. Wired in from a numeric backend; cluster fails fast without it.
type Clusterer interface {
	Cluster(points [][]float64, k int, seed int64) ([]int, error)
}

// Selector reduces a ranked population to exactly one SelectionResult.
type Selector struct {
	grid   *GridSpec
	cfg    SelectionConfig
	logger *logrus.Logger

	// Optional numeric collaborators, assigned by the caller.
	Density   DensityEstimator
	Clusterer Clusterer
}

// NewSelector validates the configuration eagerly.
func NewSelector(grid *GridSpec, cfg SelectionConfig, logger *logrus.Logger) (*Selector, error) {
	if grid == nil {
		return nil, &ConfigurationError{Field: "grid", Value: nil, Reason: "grid spec is required"}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Selector{grid: grid, cfg: cfg, logger: logger}, nil
}

// Select applies the configured strategy to the ranked population.
func (s *Selector) Select(ranked []*EvaluatedCombination) (SelectionResult, error) {
	result, err := s.selectWith(s.cfg.Strategy, ranked)
	if err != nil {
		metrics.RecordSelection(string(s.cfg.Strategy), "failure")
		return SelectionResult{}, err
	}
	metrics.RecordSelection(string(s.cfg.Strategy), "success")
	metrics.UpdateBestScore(string(s.cfg.Strategy), result.Score)
	s.logger.WithFields(logrus.Fields{
		"strategy":    result.Strategy,
		"combination": result.Combination.Key(),
		"score":       result.Score,
	}).Info("Selected final parameter combination")
	return result, nil
}

func (s *Selector) selectWith(strategy SelectionStrategy, ranked []*EvaluatedCombination) (SelectionResult, error) {
	if len(ranked) == 0 {
		return SelectionResult{}, &EmptyPopulationError{}
	}

	switch strategy {
	case SelectBest:
		return SelectionResult{
			Combination: ranked[0].Combination,
			Strategy:    SelectBest,
			Score:       ranked[0].Score,
		}, nil
	case SelectPlateau:
		return s.selectPlateau(ranked)
	case SelectPlateauFreq:
		return s.selectPlateauFreq(ranked)
	case SelectPlateauKDE:
		return s.selectPlateauKDE(ranked)
	case SelectCluster:
		return s.selectCluster(ranked)
	case SelectRobust:
		return s.selectRobust(ranked)
	default:
		return SelectionResult{}, &ConfigurationError{Field: "selection.strategy", Value: string(strategy), Reason: "unknown selection strategy"}
	}
}

// filterTop returns the plateau: combinations at or above the threshold when
// one is configured, otherwise the top fraction by rank. Never empty.
func (s *Selector) filterTop(ranked []*EvaluatedCombination) []*EvaluatedCombination {
	if s.cfg.PlateauThreshold != nil {
		top := make([]*EvaluatedCombination, 0)
		for _, ec := range ranked {
			if ec.Score >= *s.cfg.PlateauThreshold {
				top = append(top, ec)
			}
		}
		if len(top) > 0 {
			return top
		}
	}
	n := int(float64(len(ranked)) * s.cfg.PlateauTopPct)
	if n < 1 {
		n = 1
	}
	return ranked[:n]
}

func (s *Selector) selectPlateau(ranked []*EvaluatedCombination) (SelectionResult, error) {
	top := s.filterTop(ranked)
	final := s.centroid(top, ranked[0].Combination)
	return SelectionResult{
		Combination: final,
		Strategy:    SelectPlateau,
		Score:       scoreFor(ranked, final),
		Diagnostics: map[string]interface{}{"plateau_size": len(top), "centroid": final.Key()},
	}, nil
}

func (s *Selector) selectPlateauFreq(ranked []*EvaluatedCombination) (SelectionResult, error) {
	top := s.filterTop(ranked)
	rank1 := ranked[0].Combination

	values := make(map[string]interface{}, len(s.grid.params))
	for _, name := range s.grid.searched {
		mode := s.modeValue(top, name, rank1)
		if f, ok := asFloat(mode); ok && s.grid.valueIndexExact(name, mode) < 0 {
			mode = s.grid.Snap(name, f, nil)
		}
		values[name] = mode
	}
	for _, name := range s.grid.fixed {
		values[name] = s.grid.params[name].Fixed
	}
	final := NewCombination(values)

	diag := map[string]interface{}{"plateau_size": len(top)}
	if findEvaluated(ranked, final) == nil {
		nearest := nearestEvaluated(ranked, final, s.grid)
		diag["synthesized"] = final.Key()
		final = nearest.Combination
	}
	return SelectionResult{
		Combination: final,
		Strategy:    SelectPlateauFreq,
		Score:       scoreFor(ranked, final),
		Diagnostics: diag,
	}, nil
}

func (s *Selector) selectPlateauKDE(ranked []*EvaluatedCombination) (SelectionResult, error) {
	if s.Density == nil {
		return SelectionResult{}, &MissingOptionalDependencyError{Capability: "density estimation (plateau_kde)"}
	}
	names := s.numericSearchedNames()
	if len(names) == 0 {
		return SelectionResult{}, &ConfigurationError{Field: "grid", Value: s.grid.searched, Reason: "plateau_kde needs at least one numeric searched parameter"}
	}

	top := s.filterTop(ranked)
	points := s.normalizedPoints(top, names)
	at := s.normalizedPoints(ranked, names)
	densities, err := s.Density.Density(points, at)
	if err != nil {
		return SelectionResult{}, fmt.Errorf("density estimation failed: %w", err)
	}

	bestIdx := 0
	for i, d := range densities {
		if d > densities[bestIdx]+floatTolerance {
			bestIdx = i
		}
	}
	chosen := ranked[bestIdx]
	return SelectionResult{
		Combination: chosen.Combination,
		Strategy:    SelectPlateauKDE,
		Score:       chosen.Score,
		Diagnostics: map[string]interface{}{"plateau_size": len(top), "density": densities[bestIdx]},
	}, nil
}

func (s *Selector) selectCluster(ranked []*EvaluatedCombination) (SelectionResult, error) {
	if s.Clusterer == nil {
		return SelectionResult{}, &MissingOptionalDependencyError{Capability: "clustering (cluster)"}
	}
	names := s.numericSearchedNames()
	if len(names) == 0 {
		return SelectionResult{}, &ConfigurationError{Field: "grid", Value: s.grid.searched, Reason: "cluster needs at least one numeric searched parameter"}
	}

	top := s.filterTop(ranked)
	k := s.cfg.NClusters
	if k > len(top) {
		k = len(top)
	}
	points := s.normalizedPoints(top, names)
	assignments, err := s.Clusterer.Cluster(points, k, s.cfg.Seed)
	if err != nil {
		return SelectionResult{}, fmt.Errorf("clustering failed: %w", err)
	}

	// best cluster by mean score
	sums := make([]float64, k)
	counts := make([]int, k)
	for i, label := range assignments {
		sums[label] += top[i].Score
		counts[label]++
	}
	bestLabel, bestMean := 0, math.Inf(-1)
	for label := 0; label < k; label++ {
		if counts[label] == 0 {
			continue
		}
		if mean := sums[label] / float64(counts[label]); mean > bestMean {
			bestLabel, bestMean = label, mean
		}
	}

	cluster := make([]*EvaluatedCombination, 0, counts[bestLabel])
	for i, label := range assignments {
		if label == bestLabel {
			cluster = append(cluster, top[i])
		}
	}
	final := s.centroid(cluster, ranked[0].Combination)
	return SelectionResult{
		Combination: final,
		Strategy:    SelectCluster,
		Score:       scoreFor(ranked, final),
		Diagnostics: map[string]interface{}{
			"clusters":           k,
			"chosen_cluster":     bestLabel,
			"cluster_size":       len(cluster),
			"cluster_mean_score": bestMean,
			"centroid":           final.Key(),
		},
	}, nil
}

// selectRobust penalizes each candidate by the score variance of its grid
// neighborhood: penalized = score - alpha * var(neighborhood). A uniformly
// good plateau beats a narrow spike of the same height.
func (s *Selector) selectRobust(ranked []*EvaluatedCombination) (SelectionResult, error) {
	radius := s.cfg.RobustRadius * len(s.grid.searched)
	bestIdx := 0
	bestPenalized := math.Inf(-1)
	bestNeighborhood := 0
	for i, candidate := range ranked {
		neighborScores := make([]float64, 0)
		for _, other := range ranked {
			if s.grid.IndexDistance(candidate.Combination, other.Combination) <= radius {
				neighborScores = append(neighborScores, other.Score)
			}
		}
		penalized := candidate.Score - s.cfg.RobustAlpha*variance(neighborScores)
		if penalized > bestPenalized+floatTolerance {
			bestIdx, bestPenalized, bestNeighborhood = i, penalized, len(neighborScores)
		}
	}
	chosen := ranked[bestIdx]
	return SelectionResult{
		Combination: chosen.Combination,
		Strategy:    SelectRobust,
		Score:       chosen.Score,
		Diagnostics: map[string]interface{}{
			"penalized_score":   bestPenalized,
			"neighborhood_size": bestNeighborhood,
		},
	}, nil
}

// centroid synthesizes the per-parameter mean (numeric) or mode (categorical)
// of the set, snapped to the nearest grid value; equidistant snaps resolve
// toward rank1's value.
func (s *Selector) centroid(set []*EvaluatedCombination, rank1 Combination) Combination {
	values := make(map[string]interface{}, len(s.grid.params))
	for _, name := range s.grid.searched {
		if s.grid.NumericSearched(name) {
			sum, count := 0.0, 0
			for _, ec := range set {
				if f, ok := ec.Combination.Float(name); ok {
					sum += f
					count++
				}
			}
			if count > 0 {
				prefer, _ := rank1.Value(name)
				values[name] = s.grid.Snap(name, sum/float64(count), prefer)
				continue
			}
		}
		values[name] = s.modeValue(set, name, rank1)
	}
	for _, name := range s.grid.fixed {
		values[name] = s.grid.params[name].Fixed
	}
	return NewCombination(values)
}

// modeValue returns the most frequent value of the parameter across the set.
// Frequency ties resolve toward the value closest to rank1's value, then
// toward rank order of first appearance.
func (s *Selector) modeValue(set []*EvaluatedCombination, name string, rank1 Combination) interface{} {
	counts := make(map[string]int)
	byKey := make(map[string]interface{})
	order := make([]string, 0, len(set))
	for _, ec := range set {
		v, ok := ec.Combination.Value(name)
		if !ok {
			continue
		}
		key := formatValue(v)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
			byKey[key] = v
		}
		counts[key]++
	}
	if len(order) == 0 {
		v, _ := rank1.Value(name)
		return v
	}

	rank1Value, _ := rank1.Value(name)
	rank1Float, rank1Numeric := asFloat(rank1Value)
	bestKey := ""
	bestCount := -1
	bestDist := math.Inf(1)
	for _, key := range order {
		count := counts[key]
		dist := math.Inf(1)
		if f, ok := asFloat(byKey[key]); ok && rank1Numeric {
			dist = math.Abs(f - rank1Float)
		} else if valuesEqual(byKey[key], rank1Value) {
			dist = 0
		}
		if count > bestCount || (count == bestCount && dist < bestDist) {
			bestKey, bestCount, bestDist = key, count, dist
		}
	}
	return byKey[bestKey]
}

func (s *Selector) numericSearchedNames() []string {
	names := make([]string, 0, len(s.grid.searched))
	for _, name := range s.grid.searched {
		if s.grid.NumericSearched(name) {
			names = append(names, name)
		}
	}
	return names
}

// normalizedPoints maps combinations into [0,1]^d over the named parameters,
// dividing by each grid's value range. Degenerate ranges map to 0.5.
func (s *Selector) normalizedPoints(set []*EvaluatedCombination, names []string) [][]float64 {
	points := make([][]float64, len(set))
	for i, ec := range set {
		point := make([]float64, len(names))
		for d, name := range names {
			span := s.grid.valueRange(name)
			v, _ := ec.Combination.Float(name)
			if span <= floatTolerance {
				point[d] = 0.5
				continue
			}
			lo := math.Inf(1)
			for _, candidate := range s.grid.params[name].Values {
				if f, ok := asFloat(candidate); ok {
					lo = math.Min(lo, f)
				}
			}
			point[d] = (v - lo) / span
		}
		points[i] = point
	}
	return points
}

// scoreFor resolves the score of a possibly-synthesized combination: its own
// evaluated score when present, otherwise the nearest evaluated neighbor's.
func scoreFor(ranked []*EvaluatedCombination, combination Combination) float64 {
	if ec := findEvaluated(ranked, combination); ec != nil {
		return ec.Score
	}
	return ranked[0].Score
}

func findEvaluated(ranked []*EvaluatedCombination, combination Combination) *EvaluatedCombination {
	for _, ec := range ranked {
		if ec.Combination.Equal(combination) {
			return ec
		}
	}
	return nil
}

// nearestEvaluated picks the evaluated combination at minimum total
// normalized parameter distance; distance ties resolve by rank order.
func nearestEvaluated(ranked []*EvaluatedCombination, combination Combination, grid *GridSpec) *EvaluatedCombination {
	best := ranked[0]
	bestDist := math.Inf(1)
	for _, ec := range ranked {
		if d := grid.NormalizedDistance(ec.Combination, combination); d < bestDist-floatTolerance {
			best, bestDist = ec, d
		}
	}
	return best
}

func variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	total := 0.0
	for _, v := range values {
		diff := v - mean
		total += diff * diff
	}
	return total / float64(len(values))
}
