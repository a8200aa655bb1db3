package backtest

import (
	"fmt"

	"github.com/yourusername/gridtune/internal/config"
)

// BacktestConfig extends core config with execution settings
type BacktestConfig struct {
	Symbol         string
	InitialCash    float64
	CommissionRate float64
	SlippageBps    float64
	RiskFreeRate   float64
}

// FromConfig converts app config to backtest config
func FromConfig(cfg *config.BacktestConfig) (BacktestConfig, error) {
	if cfg == nil {
		return BacktestConfig{}, fmt.Errorf("backtest config is required")
	}

	bt := BacktestConfig{
		Symbol:         cfg.Symbol,
		InitialCash:    cfg.InitialCash,
		CommissionRate: cfg.CommissionRate,
		SlippageBps:    cfg.SlippageBps,
		RiskFreeRate:   cfg.RiskFreeRate,
	}
	return bt, bt.Validate()
}

// Validate validates backtest config parameters
func (b BacktestConfig) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if b.InitialCash <= 0 {
		return fmt.Errorf("initial cash must be positive")
	}
	if b.CommissionRate < 0 || b.CommissionRate > 0.1 {
		return fmt.Errorf("commission rate must be between 0 and 0.1")
	}
	if b.SlippageBps < 0 {
		return fmt.Errorf("slippage cannot be negative")
	}
	return nil
}
