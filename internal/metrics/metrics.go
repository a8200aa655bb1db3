// Package metrics provides the centralized Prometheus metrics registry for
// the optimizer.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	EvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridtune",
		Name:      "evaluations_total",
		Help:      "Total number of combination/window evaluations by status",
	}, []string{"status"})
	SelectionRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridtune",
		Name:      "selection_runs_total",
		Help:      "Total number of parameter selections by strategy and status",
	}, []string{"strategy", "status"})
	SequentialProposalsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "gridtune",
		Name:      "sequential_proposals_total",
		Help:      "Total number of combinations proposed by sequential search",
	})
)

// Gauge metrics
var (
	PopulationSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridtune",
		Name:      "population_size",
		Help:      "Number of evaluated combinations in the current population",
	})
	BestScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "gridtune",
		Name:      "best_score",
		Help:      "Best objective score observed per selection strategy",
	}, []string{"strategy"})
)

// Histogram metrics
var (
	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gridtune",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of a single combination/window evaluation in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	OptimizationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "gridtune",
		Name:      "optimization_duration_seconds",
		Help:      "Duration of complete optimization runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register counter metrics
		registry.MustRegister(EvaluationsTotal)
		registry.MustRegister(SelectionRunsTotal)
		registry.MustRegister(SequentialProposalsTotal)

		// Register gauge metrics
		registry.MustRegister(PopulationSize)
		registry.MustRegister(BestScore)

		// Register histogram metrics
		registry.MustRegister(EvaluationDuration)
		registry.MustRegister(OptimizationDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordEvaluation records one combination/window evaluation.
// status should be one of: "success", "failure", "timeout"
func RecordEvaluation(status string, durationSeconds float64) {
	EvaluationsTotal.WithLabelValues(status).Inc()
	EvaluationDuration.Observe(durationSeconds)
}

// RecordSelection records a selection attempt for a strategy.
func RecordSelection(strategy, status string) {
	SelectionRunsTotal.WithLabelValues(strategy, status).Inc()
}

// RecordSequentialProposal records one sequential-search proposal.
func RecordSequentialProposal() {
	SequentialProposalsTotal.Inc()
}

// UpdatePopulationSize updates the evaluated population gauge.
func UpdatePopulationSize(count float64) {
	PopulationSize.Set(count)
}

// UpdateBestScore updates the best observed score for a strategy.
func UpdateBestScore(strategy string, score float64) {
	BestScore.WithLabelValues(strategy).Set(score)
}
