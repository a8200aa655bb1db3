package config

import (
	"fmt"
	"time"

	"github.com/yourusername/gridtune/internal/optimizer"
)

// BuildGridSpec converts the declared grid into an optimizer grid spec.
func (c *OptimizerConfig) BuildGridSpec() (*optimizer.GridSpec, error) {
	params := make(map[string]optimizer.ParamSpec, len(c.Grid))
	for name, param := range c.Grid {
		params[name] = optimizer.ParamSpec{
			Values: param.Values,
			Fixed:  param.Fixed,
		}
	}
	return optimizer.NewGridSpec(params)
}

// BuildObjective converts the objective configuration. When the direction is
// not given explicitly, drawdown-like metrics default to minimization.
func (c *OptimizerConfig) BuildObjective() (*optimizer.Objective, error) {
	obj := c.Objective
	maximize := true
	if obj.Maximize != nil {
		maximize = *obj.Maximize
	} else if obj.Metric != "" && optimizer.LowerIsBetter(obj.Metric) {
		maximize = false
	}
	return optimizer.NewObjective(obj.Metric, maximize, obj.Weights)
}

// BuildSelectionConfig converts the selection configuration.
func (c *OptimizerConfig) BuildSelectionConfig() (optimizer.SelectionConfig, error) {
	strategy, err := optimizer.ParseSelectionStrategy(c.Selection.Strategy)
	if err != nil {
		return optimizer.SelectionConfig{}, err
	}
	cfg := optimizer.SelectionConfig{
		Strategy:         strategy,
		PlateauTopPct:    c.Selection.PlateauTopPct,
		PlateauThreshold: c.Selection.PlateauThreshold,
		RobustAlpha:      c.Selection.RobustAlpha,
		RobustRadius:     c.Selection.RobustRadius,
		NClusters:        c.Selection.NClusters,
		Seed:             c.Seed,
	}
	if err := cfg.Validate(); err != nil {
		return optimizer.SelectionConfig{}, err
	}
	return cfg, nil
}

// BuildWindows derives the evaluation windows of the run from the backtest
// date range: walk-forward blocks when enabled, otherwise the full range once.
func (c *Config) BuildWindows() ([]optimizer.Window, error) {
	start, err := time.Parse("2006-01-02", c.Backtest.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid backtest start_date: %w", err)
	}
	end, err := time.Parse("2006-01-02", c.Backtest.EndDate)
	if err != nil {
		return nil, fmt.Errorf("invalid backtest end_date: %w", err)
	}

	wf := c.Optimizer.WalkForward
	if wf.Enabled {
		return optimizer.WalkForwardWindows(start, end, wf.TrainDays, wf.TestDays)
	}
	return optimizer.SingleWindow(start, end), nil
}

// EvalTimeout returns the per-evaluation deadline, zero when disabled.
func (c *OptimizerConfig) EvalTimeout() time.Duration {
	return time.Duration(c.EvalTimeoutSeconds) * time.Second
}
