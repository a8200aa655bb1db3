package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/yourusername/gridtune/internal/marketdata"
	"github.com/yourusername/gridtune/internal/optimizer"
)

func barsFromCloses(start time.Time, closes []float64) []marketdata.Bar {
	bars := make([]marketdata.Bar, len(closes))
	for i, c := range closes {
		bars[i] = marketdata.Bar{
			Time:   start.AddDate(0, 0, i),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func TestParamsFromCombination(t *testing.T) {
	c := optimizer.NewCombination(map[string]interface{}{
		"fast_period":        5,
		"slow_period":        20,
		"atr_period":         14,
		"risk_per_trade_pct": 0.02,
	})

	params, err := ParamsFromCombination(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params.FastPeriod != 5 || params.SlowPeriod != 20 || params.ATRPeriod != 14 {
		t.Fatalf("unexpected periods: %+v", params)
	}
	if params.RiskPerTradePct != 0.02 {
		t.Fatalf("expected risk 0.02, got %v", params.RiskPerTradePct)
	}
}

func TestParamsFromCombinationMissingParam(t *testing.T) {
	c := optimizer.NewCombination(map[string]interface{}{
		"fast_period": 5,
		"slow_period": 20,
	})
	if _, err := ParamsFromCombination(c); err == nil {
		t.Fatal("expected error for missing atr_period")
	}
}

func TestParamsValidateRejectsInvertedPeriods(t *testing.T) {
	p := StrategyParams{FastPeriod: 20, SlowPeriod: 10, ATRPeriod: 14, RiskPerTradePct: 0.02}
	if err := p.Validate(); err == nil {
		t.Fatal("expected error when fast >= slow")
	}
}

func TestParamsValidateRejectsBadRisk(t *testing.T) {
	p := StrategyParams{FastPeriod: 5, SlowPeriod: 20, ATRPeriod: 14, RiskPerTradePct: 1.5}
	if err := p.Validate(); err == nil {
		t.Fatal("expected error for risk above 1")
	}
}

func TestWarmupCoversBothIndicators(t *testing.T) {
	p := StrategyParams{FastPeriod: 5, SlowPeriod: 20, ATRPeriod: 14, RiskPerTradePct: 0.02}
	if got := p.Warmup(); got != 20 {
		t.Fatalf("expected warmup 20, got %d", got)
	}

	p.ATRPeriod = 30
	if got := p.Warmup(); got != 31 {
		t.Fatalf("expected warmup 31 when atr dominates, got %d", got)
	}
}

func TestSMA(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := barsFromCloses(start, []float64{10, 20, 30, 40})

	got := sma(bars, 3, 3)
	if math.Abs(got-30) > 1e-9 {
		t.Fatalf("expected sma 30, got %v", got)
	}
}

func TestATRUsesPreviousClose(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	// gap up from 100 to 110 makes true range |high - prevClose| dominate
	bars := barsFromCloses(start, []float64{100, 110})

	got := atr(bars, 1, 1)
	if math.Abs(got-11) > 1e-9 {
		t.Fatalf("expected atr 11 from gap, got %v", got)
	}
}

func TestEvaluateBarEnterOnBullishCross(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := barsFromCloses(start, []float64{100, 100, 100, 102})
	p := StrategyParams{FastPeriod: 2, SlowPeriod: 3, ATRPeriod: 2, RiskPerTradePct: 0.1}

	if got := p.evaluateBar(bars, 3, false); got != SignalEnter {
		t.Fatalf("expected enter signal, got %v", got)
	}
	// already holding, no re-entry
	if got := p.evaluateBar(bars, 3, true); got != SignalHold {
		t.Fatalf("expected hold when already in position, got %v", got)
	}
}

func TestEvaluateBarExitOnBearishCross(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := barsFromCloses(start, []float64{100, 110, 120, 95})
	p := StrategyParams{FastPeriod: 2, SlowPeriod: 3, ATRPeriod: 2, RiskPerTradePct: 0.1}

	if got := p.evaluateBar(bars, 3, true); got != SignalExit {
		t.Fatalf("expected exit signal, got %v", got)
	}
	if got := p.evaluateBar(bars, 3, false); got != SignalHold {
		t.Fatalf("expected hold when flat in downtrend, got %v", got)
	}
}
