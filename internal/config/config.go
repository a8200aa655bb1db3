// Package config provides configuration management for the GridTune optimizer.
package config

import (
	"fmt"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `mapstructure:"app" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Data      DataConfig      `mapstructure:"data" validate:"required"`
	Backtest  BacktestConfig  `mapstructure:"backtest" validate:"required"`
	Optimizer OptimizerConfig `mapstructure:"optimizer" validate:"required"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password" validate:"required"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// DataConfig represents market data source configuration
type DataConfig struct {
	Source            string  `mapstructure:"source" validate:"required,oneof=csv http"`
	CSVDir            string  `mapstructure:"csv_dir"`
	APIURL            string  `mapstructure:"api_url" validate:"omitempty,url"`
	APIKey            string  `mapstructure:"api_key"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"omitempty,gt=0"`
	RetryMax          int     `mapstructure:"retry_max" validate:"gte=0"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds" validate:"omitempty,gt=0"`
}

// BacktestConfig represents backtest execution configuration
type BacktestConfig struct {
	Symbol         string  `mapstructure:"symbol" validate:"required"`
	StartDate      string  `mapstructure:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate        string  `mapstructure:"end_date" validate:"required,datetime=2006-01-02"`
	InitialCash    float64 `mapstructure:"initial_cash" validate:"required,gt=0"`
	CommissionRate float64 `mapstructure:"commission_rate" validate:"gte=0,lte=0.1"`
	SlippageBps    float64 `mapstructure:"slippage_bps" validate:"gte=0"`
	RiskFreeRate   float64 `mapstructure:"risk_free_rate" validate:"gte=0,lte=1"`
}

// OptimizerConfig represents the search, objective and selection configuration
type OptimizerConfig struct {
	Grid               map[string]GridParam `mapstructure:"grid" validate:"required,min=1"`
	MaxCombos          int                  `mapstructure:"max_combos" validate:"required,gt=0"`
	Seed               int64                `mapstructure:"seed"`
	Workers            int                  `mapstructure:"workers" validate:"required,gt=0"`
	EvalTimeoutSeconds int                  `mapstructure:"eval_timeout_seconds" validate:"gte=0"`
	Objective          ObjectiveConfig      `mapstructure:"objective" validate:"required"`
	WalkForward        WalkForwardConfig    `mapstructure:"walk_forward"`
	Selection          SelectionConfig      `mapstructure:"selection" validate:"required"`
	Bayesian           BayesianConfig       `mapstructure:"bayesian"`
}

// GridParam declares one parameter: either a list of values to search or a
// single fixed value.
type GridParam struct {
	Values []interface{} `mapstructure:"values"`
	Fixed  interface{}   `mapstructure:"fixed"`
}

// ObjectiveConfig represents the scoring objective. Either a single metric or
// a weighted composite.
type ObjectiveConfig struct {
	Metric   string             `mapstructure:"metric"`
	Maximize *bool              `mapstructure:"maximize"`
	Weights  map[string]float64 `mapstructure:"weights"`
}

// WalkForwardConfig represents walk-forward window configuration
type WalkForwardConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	TrainDays int  `mapstructure:"train_days" validate:"omitempty,gt=0"`
	TestDays  int  `mapstructure:"test_days" validate:"omitempty,gt=0"`
}

// SelectionConfig represents final combination selection configuration
type SelectionConfig struct {
	Strategy         string   `mapstructure:"strategy" validate:"required"`
	PlateauTopPct    float64  `mapstructure:"plateau_top_pct" validate:"required,gt=0,lte=1"`
	PlateauThreshold *float64 `mapstructure:"plateau_threshold"`
	RobustAlpha      float64  `mapstructure:"robust_alpha" validate:"gte=0"`
	RobustRadius     int      `mapstructure:"robust_radius" validate:"required,gte=1"`
	NClusters        int      `mapstructure:"n_clusters" validate:"required,gte=1"`
}

// BayesianConfig represents sequential surrogate search configuration
type BayesianConfig struct {
	Enabled bool `mapstructure:"enabled"`
	NCalls  int  `mapstructure:"n_calls" validate:"omitempty,gt=0"`
}

// ServerConfig represents the metrics and progress endpoint configuration
type ServerConfig struct {
	Port        int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	MetricsPath string `mapstructure:"metrics_path" validate:"required"`
}

// ScheduleConfig represents periodic re-optimization scheduling
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron" validate:"required_if=Enabled true"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
