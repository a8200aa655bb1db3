package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// MonteCarloConfig configures trade resampling
type MonteCarloConfig struct {
	Iterations  int
	Seed        int64
	InitialCash float64
}

// MonteCarloResult represents resampled equity outcomes
type MonteCarloResult struct {
	Iterations          int                `json:"iterations"`
	MeanReturn          float64            `json:"mean_return"`
	StdReturn           float64            `json:"std_return"`
	VaR95               float64            `json:"var_95"`
	VaR99               float64            `json:"var_99"`
	ProbabilityOfProfit float64            `json:"probability_of_profit"`
	ProbabilityOfRuin   float64            `json:"probability_of_ruin"`
	ConfidenceIntervals map[string]float64 `json:"confidence_intervals"`
	Distribution        []float64          `json:"distribution"`
}

// RunMonteCarlo resamples the realized trade PnLs with replacement and
// measures the spread of terminal equity. A wide spread relative to the
// original outcome indicates the result depends on trade ordering and luck
// rather than edge.
func RunMonteCarlo(ctx context.Context, trades []Trade, cfg MonteCarloConfig) (MonteCarloResult, error) {
	if len(trades) == 0 {
		return MonteCarloResult{}, fmt.Errorf("no trades to resample")
	}
	if cfg.InitialCash <= 0 {
		return MonteCarloResult{}, fmt.Errorf("initial cash must be positive")
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1000
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	pnls := make([]float64, len(trades))
	for i, t := range trades {
		pnls[i] = t.PnL
	}

	rng := rand.New(rand.NewSource(seed))
	distribution := make([]float64, cfg.Iterations)

	for i := 0; i < cfg.Iterations; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return MonteCarloResult{}, err
			}
		}
		equity := cfg.InitialCash
		for range pnls {
			equity += pnls[rng.Intn(len(pnls))]
			if equity <= 0 {
				equity = 0
				break
			}
		}
		distribution[i] = equity
	}

	mean, std := meanStd(distribution)
	var95 := percentile(distribution, 0.05)
	var99 := percentile(distribution, 0.01)

	result := MonteCarloResult{
		Iterations:          cfg.Iterations,
		MeanReturn:          (mean - cfg.InitialCash) / cfg.InitialCash,
		StdReturn:           std / cfg.InitialCash,
		VaR95:               (var95 - cfg.InitialCash) / cfg.InitialCash,
		VaR99:               (var99 - cfg.InitialCash) / cfg.InitialCash,
		ProbabilityOfProfit: probabilityAbove(distribution, cfg.InitialCash),
		ProbabilityOfRuin:   probabilityAtOrBelow(distribution, 0),
		ConfidenceIntervals: CalculateConfidenceIntervals(distribution, []float64{0.9, 0.95, 0.99}),
		Distribution:        distribution,
	}
	return result, nil
}

// CalculateConfidenceIntervals computes interval widths for the given levels
func CalculateConfidenceIntervals(distribution []float64, levels []float64) map[string]float64 {
	results := make(map[string]float64)
	for _, level := range levels {
		p := (1.0 - level) / 2.0
		low := percentile(distribution, p)
		high := percentile(distribution, 1.0-p)
		results[formatPercent(level)] = high - low
	}
	return results
}

// ToJSON serializes the result for persistence
func (m MonteCarloResult) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
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
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64{}, values...)
	sort.Float64s(sorted)
	idx := int(math.Floor(p * float64(len(sorted)-1)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func probabilityAbove(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v > threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func probabilityAtOrBelow(values []float64, threshold float64) float64 {
	if len(values) == 0 {
		return 0
	}
	count := 0
	for _, v := range values {
		if v <= threshold {
			count++
		}
	}
	return float64(count) / float64(len(values))
}

func formatPercent(level float64) string {
	return fmt.Sprintf("%.0f%%", level*100)
}
