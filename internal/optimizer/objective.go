package optimizer

import (
	"math"
	"strings"
)

// MetricsRecord maps metric names to values for one evaluation. Drawdown-type
// metrics are stored as positive magnitudes.
type MetricsRecord map[string]float64

// lowerIsBetter lists metrics whose goodness direction is inverted wherever
// they participate in an objective.
var lowerIsBetter = map[string]bool{
	"drawdown":     true,
	"max_drawdown": true,
	"var_95":       true,
	"var_99":       true,
}

// LowerIsBetter reports whether smaller values of the metric are better.
func LowerIsBetter(metric string) bool {
	return lowerIsBetter[normalizeMetricName(metric)]
}

// Objective specifies how a raw metrics record is reduced to one comparable
// score. Either a single metric with a direction, or a composite weight map.
type Objective struct {
	Metric   string
	Maximize bool
	Weights  map[string]float64 // non-empty means composite

	weights map[string]float64 // normalized, keys canonical
}

// NewObjective validates the specification eagerly. Composite weights must be
// non-negative with a positive sum; they are normalized to sum to 1.
func NewObjective(metric string, maximize bool, weights map[string]float64) (*Objective, error) {
	o := &Objective{Metric: normalizeMetricName(metric), Maximize: maximize, Weights: weights}
	if len(weights) == 0 {
		if o.Metric == "" {
			return nil, &ConfigurationError{Field: "objective.metric", Value: metric, Reason: "a metric name or composite weights are required"}
		}
		return o, nil
	}

	sum := 0.0
	o.weights = make(map[string]float64, len(weights))
	for name, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, &ConfigurationError{Field: "objective.weights." + name, Value: w, Reason: "weight must be a finite number"}
		}
		if w < 0 {
			return nil, &ConfigurationError{Field: "objective.weights." + name, Value: w, Reason: "weight must not be negative"}
		}
		if w == 0 {
			continue
		}
		o.weights[normalizeMetricName(name)] = w
		sum += w
	}
	if sum <= 0 {
		return nil, &ConfigurationError{Field: "objective.weights", Value: weights, Reason: "weights must have a positive sum"}
	}
	for name := range o.weights {
		o.weights[name] /= sum
	}
	return o, nil
}

// Composite reports whether the objective blends multiple metrics.
func (o *Objective) Composite() bool {
	return len(o.weights) > 0
}

// MetricName returns the single objective metric, or empty for composites.
func (o *Objective) MetricName() string {
	if o.Composite() {
		return ""
	}
	return o.Metric
}

// ScorePopulation assigns each evaluated combination a score where higher is
// always better, direction already folded in.
//
// Composite scores min-max normalize each component metric across the current
// population, so they are only comparable within one evaluation run, never
// across runs. A missing metric or a zero-variance metric contributes the
// neutral constant 0.5.
func (o *Objective) ScorePopulation(population []*EvaluatedCombination) {
	if o.Composite() {
		o.scoreComposite(population)
		return
	}
	for _, ec := range population {
		ec.Score = o.scoreSingle(ec.Metrics)
	}
}

// ScoreRecord scores one standalone record under a single-metric objective.
// It is used by the sequential search driver, which observes records one at a
// time and cannot use population-relative composites.
func (o *Objective) ScoreRecord(record MetricsRecord) float64 {
	return o.scoreSingle(record)
}

func (o *Objective) scoreSingle(record MetricsRecord) float64 {
	v, ok := record[o.Metric]
	if !ok {
		return math.Inf(-1)
	}
	if o.Maximize {
		return v
	}
	return -v
}

func (o *Objective) scoreComposite(population []*EvaluatedCombination) {
	type bounds struct {
		lo, hi float64
		seen   bool
	}
	ranges := make(map[string]*bounds, len(o.weights))
	for name := range o.weights {
		ranges[name] = &bounds{lo: math.Inf(1), hi: math.Inf(-1)}
	}
	for _, ec := range population {
		for name, b := range ranges {
			v, ok := ec.Metrics[name]
			if !ok {
				continue
			}
			b.lo = math.Min(b.lo, v)
			b.hi = math.Max(b.hi, v)
			b.seen = true
		}
	}

	for _, ec := range population {
		score := 0.0
		for name, w := range o.weights {
			b := ranges[name]
			v, ok := ec.Metrics[name]
			if !ok || !b.seen || b.hi-b.lo <= floatTolerance {
				score += w * 0.5
				continue
			}
			norm := (v - b.lo) / (b.hi - b.lo)
			if LowerIsBetter(name) {
				norm = 1.0 - norm
			}
			score += w * norm
		}
		ec.Score = score
	}
}

func normalizeMetricName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
