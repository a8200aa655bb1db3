package optimizer

import (
	"context"
	"math"

	"github.com/sirupsen/logrus"
)

// WindowScore is one held-out window's objective metric value.
type WindowScore struct {
	Window Window  `json:"window"`
	Value  float64 `json:"value"`
}

// StabilityReport summarizes how the chosen combination behaves across
// held-out windows. Purely observational: it never alters the selection.
type StabilityReport struct {
	Metric  string        `json:"metric"`
	Mean    float64       `json:"mean"`
	Std     float64       `json:"std"`
	Windows []WindowScore `json:"windows"`
}

// ValidateSelection re-evaluates the chosen combination on each validation
// window and reports the mean and standard deviation of the objective metric.
// Failed windows are logged and skipped.
func ValidateSelection(ctx context.Context, driver *Driver, combination Combination, metric string, windows []Window, logger *logrus.Logger) (StabilityReport, error) {
	if logger == nil {
		logger = logrus.New()
	}
	report := StabilityReport{Metric: metric}

	for _, window := range windows {
		if ctx.Err() != nil {
			break
		}
		record, err := driver.EvaluateOne(ctx, combination, window)
		if err != nil {
			logger.WithField("window", window.Key()).WithError(err).Warn("Validation window failed, skipping")
			continue
		}
		value, ok := record[normalizeMetricName(metric)]
		if !ok {
			logger.WithFields(logrus.Fields{"window": window.Key(), "metric": metric}).Warn("Metric missing from validation record, skipping")
			continue
		}
		report.Windows = append(report.Windows, WindowScore{Window: window, Value: value})
	}

	if len(report.Windows) == 0 {
		return report, &EmptyPopulationError{Attempted: len(windows)}
	}

	values := make([]float64, len(report.Windows))
	for i, ws := range report.Windows {
		values[i] = ws.Value
	}
	report.Mean, report.Std = meanStd(values)
	return report, nil
}

func meanStd(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	return mean, math.Sqrt(variance(values))
}
