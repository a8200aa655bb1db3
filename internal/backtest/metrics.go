package backtest

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yourusername/gridtune/internal/optimizer"
)

// Metrics represents backtest performance metrics
type Metrics struct {
	TotalReturn      float64   `json:"total_return"`
	AnnualizedReturn float64   `json:"annualized_return"`
	CAGR             float64   `json:"cagr"`
	MaxDrawdown      float64   `json:"max_drawdown"`
	SharpeRatio      float64   `json:"sharpe_ratio"`
	SortinoRatio     float64   `json:"sortino_ratio"`
	CalmarRatio      float64   `json:"calmar_ratio"`
	ValueAtRisk95    float64   `json:"var_95"`
	ValueAtRisk99    float64   `json:"var_99"`
	TotalTrades      int       `json:"total_trades"`
	WinningTrades    int       `json:"winning_trades"`
	LosingTrades     int       `json:"losing_trades"`
	WinRate          float64   `json:"win_rate"`
	ProfitFactor     float64   `json:"profit_factor"`
	Expectancy       float64   `json:"expectancy"`
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	TradingDays      int       `json:"trading_days"`
}

// CalculateMetrics calculates metrics from replay state over [start, end]
func CalculateMetrics(state *PortfolioState, cfg BacktestConfig, start, end time.Time) Metrics {
	metrics := Metrics{
		StartDate:   start,
		EndDate:     end,
		TradingDays: int(end.Sub(start).Hours()/24) + 1,
	}

	if state == nil || len(state.EquityCurve) == 0 {
		return metrics
	}

	initial := state.EquityCurve[0].Value
	final := state.EquityCurve[len(state.EquityCurve)-1].Value
	if initial > 0 {
		metrics.TotalReturn = (final - initial) / initial
		metrics.CAGR = calculateCAGR(initial, final, metrics.TradingDays)
		metrics.AnnualizedReturn = metrics.CAGR
	}

	metrics.MaxDrawdown = calculateMaxDrawdown(state.EquityCurve)
	returns := state.EquityCurve.GetReturns()
	metrics.SharpeRatio = calculateSharpeRatio(returns, cfg.RiskFreeRate)
	metrics.SortinoRatio = calculateSortinoRatio(returns, cfg.RiskFreeRate)
	if metrics.MaxDrawdown > 0 {
		metrics.CalmarRatio = metrics.AnnualizedReturn / metrics.MaxDrawdown
	}
	metrics.ValueAtRisk95 = calculateVaR(returns, 0.95)
	metrics.ValueAtRisk99 = calculateVaR(returns, 0.99)

	metrics.TotalTrades = len(state.Trades)
	metrics.WinningTrades, metrics.LosingTrades = countTradeOutcomes(state.Trades)
	metrics.WinRate = calculateWinRate(metrics.WinningTrades, metrics.TotalTrades)
	metrics.ProfitFactor = calculateProfitFactor(state.Trades)
	metrics.Expectancy = calculateExpectancy(state.Trades)

	return metrics
}

// ToRecord converts metrics into the flat record scored by the optimizer.
// Drawdown and value-at-risk enter as positive magnitudes.
func (m Metrics) ToRecord() optimizer.MetricsRecord {
	return optimizer.MetricsRecord{
		"total_return":  m.TotalReturn,
		"cagr":          m.CAGR,
		"max_drawdown":  m.MaxDrawdown,
		"sharpe":        m.SharpeRatio,
		"sortino":       m.SortinoRatio,
		"calmar":        m.CalmarRatio,
		"var_95":        math.Abs(m.ValueAtRisk95),
		"var_99":        math.Abs(m.ValueAtRisk99),
		"win_rate":      m.WinRate,
		"profit_factor": m.ProfitFactor,
		"expectancy":    m.Expectancy,
		"num_trades":    float64(m.TotalTrades),
	}
}

// ToJSON exports metrics to JSON
func (m Metrics) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

func calculateSharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := average(returns)
	std := stddev(returns)
	if std == 0 {
		return 0
	}
	return (mean - riskFreeRate/252.0) / std * math.Sqrt(252)
}

func calculateSortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	mean := average(returns)
	std := downsideStddev(returns)
	if std == 0 {
		return 0
	}
	return (mean - riskFreeRate/252.0) / std * math.Sqrt(252)
}

func calculateMaxDrawdown(curve EquityCurve) float64 {
	maxDD := 0.0
	peak := 0.0
	for _, p := range curve {
		if p.Value > peak {
			peak = p.Value
		}
		if peak == 0 {
			continue
		}
		drawdown := (peak - p.Value) / peak
		if drawdown > maxDD {
			maxDD = drawdown
		}
	}
	return maxDD
}

func calculateProfitFactor(trades []Trade) float64 {
	grossProfit := 0.0
	grossLoss := 0.0
	for _, trade := range trades {
		if trade.PnL > 0 {
			grossProfit += trade.PnL
		} else {
			grossLoss += math.Abs(trade.PnL)
		}
	}
	if grossLoss == 0 {
		if grossProfit > 0 {
			return 999
		}
		return 0
	}
	return grossProfit / grossLoss
}

func calculateExpectancy(trades []Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	net := 0.0
	for _, trade := range trades {
		net += trade.PnL
	}
	return net / float64(len(trades))
}

func calculateCAGR(initial, final float64, days int) float64 {
	if initial <= 0 || final <= 0 || days <= 0 {
		return 0
	}
	years := float64(days) / 365.0
	return math.Pow(final/initial, 1.0/years) - 1.0
}

func calculateVaR(returns []float64, level float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64{}, returns...)
	sort.Float64s(sorted)
	index := int(math.Floor((1.0 - level) * float64(len(sorted))))
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func countTradeOutcomes(trades []Trade) (int, int) {
	wins := 0
	losses := 0
	for _, trade := range trades {
		if trade.PnL > 0 {
			wins++
		} else if trade.PnL < 0 {
			losses++
		}
	}
	return wins, losses
}

func calculateWinRate(wins, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(wins) / float64(total)
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	return mean / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}

func downsideStddev(values []float64) float64 {
	negatives := make([]float64, 0)
	for _, v := range values {
		if v < 0 {
			negatives = append(negatives, v)
		}
	}
	return stddev(negatives)
}

// HashParameters creates a stable hash for parameter maps
func HashParameters(params map[string]interface{}) string {
	data, _ := json.Marshal(params)
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)
}
