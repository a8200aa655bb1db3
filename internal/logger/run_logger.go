// Package logger provides a wrapper around logrus for structured logging.
package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// RunLogger provides dedicated logging for optimization run lifecycle events.
type RunLogger struct {
	*logrus.Entry
}

// NewRunLogger creates a new run logger.
func NewRunLogger(baseLogger *logrus.Logger, runID string) *RunLogger {
	return &RunLogger{
		Entry: baseLogger.WithFields(logrus.Fields{
			"component": "optimizer",
			"run_id":    runID,
		}),
	}
}

// LogRunStarted logs the start of an optimization run.
func (rl *RunLogger) LogRunStarted(symbol, mode, strategy string, combinations, windows int) {
	rl.WithFields(logrus.Fields{
		"symbol":       symbol,
		"mode":         mode,
		"strategy":     strategy,
		"combinations": combinations,
		"windows":      windows,
	}).Info("Optimization run started")
}

// LogGridSampled logs that the grid exceeded the combination cap and was
// randomly subsampled.
func (rl *RunLogger) LogGridSampled(gridSize, maxCombos int, seed int64) {
	rl.WithFields(logrus.Fields{
		"grid_size":  gridSize,
		"max_combos": maxCombos,
		"seed":       seed,
	}).Warn("Grid exceeds combination cap, sampling random subset")
}

// LogSelection logs the final selection of a run.
func (rl *RunLogger) LogSelection(strategy, combination string, score float64, populationSize int) {
	rl.WithFields(logrus.Fields{
		"strategy":        strategy,
		"combination":     combination,
		"score":           score,
		"population_size": populationSize,
	}).Info("Final combination selected")
}

// LogValidation logs the held-out stability report of the chosen combination.
func (rl *RunLogger) LogValidation(metric string, mean, std float64, windows int) {
	rl.WithFields(logrus.Fields{
		"metric":  metric,
		"mean":    mean,
		"std":     std,
		"windows": windows,
	}).Info("Validation completed")
}

// LogRunCompleted logs the end of an optimization run.
func (rl *RunLogger) LogRunCompleted(evaluations int, duration time.Duration) {
	rl.WithFields(logrus.Fields{
		"evaluations": evaluations,
		"duration_ms": duration.Milliseconds(),
	}).Info("Optimization run completed")
}

// LogRunFailed logs a failed optimization run.
func (rl *RunLogger) LogRunFailed(stage string, err error) {
	rl.WithFields(logrus.Fields{
		"stage": stage,
	}).WithError(err).Error("Optimization run failed")
}
