// Package config provides configuration management for the GridTune optimizer.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	v.RegisterValidation("environment", validateEnvironment)
	v.RegisterValidation("loglevel", validateLogLevel)

	return &CustomValidator{validator: v}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

// validateEnvironment validates the environment field
func validateEnvironment(fl validator.FieldLevel) bool {
	env := fl.Field().String()
	switch env {
	case "development", "staging", "production":
		return true
	default:
		return false
	}
}

// validateLogLevel validates the log level field
func validateLogLevel(fl validator.FieldLevel) bool {
	level := fl.Field().String()
	switch level {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	startDate, err := time.Parse("2006-01-02", cfg.Backtest.StartDate)
	if err != nil {
		return fmt.Errorf("invalid backtest start_date format: %w", err)
	}
	endDate, err := time.Parse("2006-01-02", cfg.Backtest.EndDate)
	if err != nil {
		return fmt.Errorf("invalid backtest end_date format: %w", err)
	}
	if !startDate.Before(endDate) {
		return fmt.Errorf("backtest start_date must be before end_date")
	}

	// Every grid parameter must declare values to search or a fixed value
	for name, param := range cfg.Optimizer.Grid {
		if len(param.Values) == 0 && param.Fixed == nil {
			return fmt.Errorf("grid parameter '%s' declares neither values nor a fixed value", name)
		}
		if len(param.Values) > 0 && param.Fixed != nil {
			return fmt.Errorf("grid parameter '%s' declares both values and a fixed value", name)
		}
	}

	obj := cfg.Optimizer.Objective
	if obj.Metric == "" && len(obj.Weights) == 0 {
		return fmt.Errorf("objective needs a metric or composite weights")
	}
	if obj.Metric != "" && len(obj.Weights) > 0 {
		return fmt.Errorf("objective cannot combine a single metric with composite weights")
	}
	for name, w := range obj.Weights {
		if w < 0 {
			return fmt.Errorf("objective weight for '%s' must not be negative", name)
		}
	}

	if cfg.Optimizer.WalkForward.Enabled {
		if cfg.Optimizer.WalkForward.TrainDays <= 0 || cfg.Optimizer.WalkForward.TestDays <= 0 {
			return fmt.Errorf("walk-forward mode requires positive train_days and test_days")
		}
	}

	if cfg.Optimizer.Bayesian.Enabled {
		if cfg.Optimizer.Bayesian.NCalls <= 0 {
			return fmt.Errorf("bayesian mode requires positive n_calls")
		}
		if len(obj.Weights) > 0 {
			return fmt.Errorf("bayesian mode requires a single-metric objective")
		}
	}

	if cfg.Data.Source == "http" && cfg.Data.APIURL == "" {
		return fmt.Errorf("http data source requires api_url")
	}
	if cfg.Data.Source == "csv" && cfg.Data.CSVDir == "" {
		return fmt.Errorf("csv data source requires csv_dir")
	}

	if cfg.IsProduction() && cfg.Database.SSLMode == "disable" {
		return fmt.Errorf("production environment requires SSL mode to be 'require' or 'verify-full'")
	}

	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "oneof":
			errMsg += fmt.Sprintf("- Field '%s' has invalid value '%v'\n", field, value)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}
