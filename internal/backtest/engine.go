package backtest

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/gridtune/internal/marketdata"
	"github.com/yourusername/gridtune/internal/optimizer"
)

// lookbackMultiplier inflates the warmup bar count into calendar days so
// weekends and data gaps still leave enough history before the window opens.
const lookbackMultiplier = 2

// Engine replays historical bars for one parameter combination over one
// window and reports performance metrics. It implements the optimizer's
// evaluation interface and is safe for concurrent use: each call builds its
// own portfolio state.
type Engine struct {
	cfg      BacktestConfig
	provider marketdata.Provider
	logger   *logrus.Logger
}

// NewEngine creates a new backtest engine
func NewEngine(cfg BacktestConfig, provider marketdata.Provider, logger *logrus.Logger) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("market data provider is required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, provider: provider, logger: logger}, nil
}

// Config returns the backtest configuration
func (e *Engine) Config() BacktestConfig {
	return e.cfg
}

// Evaluate runs the strategy over the window's test segment and returns its
// performance record.
func (e *Engine) Evaluate(ctx context.Context, combination optimizer.Combination, window optimizer.Window) (optimizer.MetricsRecord, error) {
	_, metrics, err := e.Backtest(ctx, combination, window)
	if err != nil {
		return nil, err
	}
	return metrics.ToRecord(), nil
}

// Backtest replays one combination over a window and returns the full
// portfolio state alongside the computed metrics. Evaluate is a thin wrapper;
// callers that need the trade list or equity curve use this directly.
func (e *Engine) Backtest(ctx context.Context, combination optimizer.Combination, window optimizer.Window) (*PortfolioState, Metrics, error) {
	params, err := ParamsFromCombination(combination)
	if err != nil {
		return nil, Metrics{}, err
	}

	// fetch extra history ahead of the test segment to seed the indicators
	lookbackDays := params.Warmup() * lookbackMultiplier
	fetchStart := window.TestStart.AddDate(0, 0, -lookbackDays)
	if window.HasTrain() && window.TrainStart.Before(fetchStart) {
		fetchStart = window.TrainStart
	}

	bars, err := e.provider.Bars(ctx, e.cfg.Symbol, fetchStart, window.TestEnd)
	if err != nil {
		return nil, Metrics{}, fmt.Errorf("failed to load bars: %w", err)
	}
	if len(bars) <= params.Warmup()+1 {
		return nil, Metrics{}, fmt.Errorf("insufficient data: %d bars for warmup %d", len(bars), params.Warmup())
	}

	state, err := e.replay(ctx, params, bars, window)
	if err != nil {
		return nil, Metrics{}, err
	}
	if len(state.EquityCurve) == 0 {
		return nil, Metrics{}, fmt.Errorf("no bars inside test segment %s", window.Key())
	}

	metrics := CalculateMetrics(state, e.cfg, window.TestStart, window.TestEnd)
	return state, metrics, nil
}

// replay walks the bar series, trading only inside the test segment.
func (e *Engine) replay(ctx context.Context, params StrategyParams, bars []marketdata.Bar, window optimizer.Window) (*PortfolioState, error) {
	state := NewPortfolioState(e.cfg.InitialCash)

	for i := params.Warmup(); i < len(bars); i++ {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		bar := bars[i]
		if bar.Time.Before(window.TestStart) {
			continue
		}

		switch params.evaluateBar(bars, i, state.Holding()) {
		case SignalEnter:
			price := e.fillPrice(bar.Close, true)
			qty := e.positionSize(params, state, bars, i, price)
			if qty > 0 {
				state.Enter(bar.Time, price, qty, e.cfg.CommissionRate)
			}
		case SignalExit:
			state.Exit(bar.Time, e.fillPrice(bar.Close, false), e.cfg.CommissionRate)
		}

		state.RecordEquityPoint(bar.Time, bar.Close)
	}

	// liquidate at the last bar so open positions settle into the metrics
	if state.Holding() {
		last := bars[len(bars)-1]
		state.Exit(last.Time, e.fillPrice(last.Close, false), e.cfg.CommissionRate)
		state.RecordEquityPoint(last.Time, last.Close)
	}
	return state, nil
}

// fillPrice applies slippage against the trade direction.
func (e *Engine) fillPrice(close float64, buying bool) float64 {
	slip := close * e.cfg.SlippageBps / 10000.0
	if buying {
		return close + slip
	}
	return close - slip
}

// positionSize risks a fixed fraction of current equity per unit of ATR,
// capped by available cash.
func (e *Engine) positionSize(params StrategyParams, state *PortfolioState, bars []marketdata.Bar, i int, price float64) float64 {
	rangePerUnit := atr(bars, i, params.ATRPeriod)
	if rangePerUnit <= 0 || price <= 0 {
		return 0
	}

	equity := state.Equity(bars[i].Close)
	qty := equity * params.RiskPerTradePct / rangePerUnit

	// never spend more cash than is available, including the entry fee
	cash, _ := state.Cash.Float64()
	maxAffordable := cash / (price * (1 + e.cfg.CommissionRate))
	if qty > maxAffordable {
		qty = maxAffordable
	}
	if qty <= 0 {
		return 0
	}
	return qty
}
