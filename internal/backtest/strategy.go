package backtest

import (
	"fmt"
	"math"

	"github.com/yourusername/gridtune/internal/marketdata"
	"github.com/yourusername/gridtune/internal/optimizer"
)

// StrategyParams are the tunable inputs of the moving-average crossover
// strategy with ATR-based position sizing.
type StrategyParams struct {
	FastPeriod      int
	SlowPeriod      int
	ATRPeriod       int
	RiskPerTradePct float64
}

// ParamsFromCombination extracts strategy parameters from an optimization
// combination. Unknown extra parameters are ignored.
func ParamsFromCombination(c optimizer.Combination) (StrategyParams, error) {
	fast, ok := c.Int("fast_period")
	if !ok {
		return StrategyParams{}, fmt.Errorf("combination missing fast_period")
	}
	slow, ok := c.Int("slow_period")
	if !ok {
		return StrategyParams{}, fmt.Errorf("combination missing slow_period")
	}
	atr, ok := c.Int("atr_period")
	if !ok {
		return StrategyParams{}, fmt.Errorf("combination missing atr_period")
	}
	risk, ok := c.Float("risk_per_trade_pct")
	if !ok {
		return StrategyParams{}, fmt.Errorf("combination missing risk_per_trade_pct")
	}

	p := StrategyParams{
		FastPeriod:      fast,
		SlowPeriod:      slow,
		ATRPeriod:       atr,
		RiskPerTradePct: risk,
	}
	return p, p.Validate()
}

// Validate rejects degenerate parameter combinations before replay.
func (p StrategyParams) Validate() error {
	if p.FastPeriod < 1 || p.SlowPeriod < 2 || p.ATRPeriod < 1 {
		return fmt.Errorf("periods must be positive, got fast=%d slow=%d atr=%d", p.FastPeriod, p.SlowPeriod, p.ATRPeriod)
	}
	if p.FastPeriod >= p.SlowPeriod {
		return fmt.Errorf("fast period %d must be below slow period %d", p.FastPeriod, p.SlowPeriod)
	}
	if p.RiskPerTradePct <= 0 || p.RiskPerTradePct > 1 {
		return fmt.Errorf("risk per trade must be in (0, 1], got %v", p.RiskPerTradePct)
	}
	return nil
}

// Warmup is the number of bars needed before the first signal.
func (p StrategyParams) Warmup() int {
	warmup := p.SlowPeriod
	if p.ATRPeriod+1 > warmup {
		warmup = p.ATRPeriod + 1
	}
	return warmup
}

// Signal is a strategy decision on one bar.
type Signal int

const (
	SignalHold Signal = iota
	SignalEnter
	SignalExit
)

// sma computes the simple moving average of the closes ending at index i.
func sma(bars []marketdata.Bar, i, period int) float64 {
	sum := 0.0
	for j := i - period + 1; j <= i; j++ {
		sum += bars[j].Close
	}
	return sum / float64(period)
}

// atr computes the average true range over the period ending at index i.
// Needs at least period+1 bars of history for the previous-close term.
func atr(bars []marketdata.Bar, i, period int) float64 {
	sum := 0.0
	for j := i - period + 1; j <= i; j++ {
		prevClose := bars[j-1].Close
		tr := bars[j].High - bars[j].Low
		if d := math.Abs(bars[j].High - prevClose); d > tr {
			tr = d
		}
		if d := math.Abs(bars[j].Low - prevClose); d > tr {
			tr = d
		}
		sum += tr
	}
	return sum / float64(period)
}

// evaluateBar derives the crossover signal at index i. The caller guarantees
// i is past the warmup boundary.
func (p StrategyParams) evaluateBar(bars []marketdata.Bar, i int, holding bool) Signal {
	fast := sma(bars, i, p.FastPeriod)
	slow := sma(bars, i, p.SlowPeriod)
	prevFast := sma(bars, i-1, p.FastPeriod)
	prevSlow := sma(bars, i-1, p.SlowPeriod)

	if !holding && prevFast <= prevSlow && fast > slow {
		return SignalEnter
	}
	if holding && prevFast >= prevSlow && fast < slow {
		return SignalExit
	}
	return SignalHold
}
