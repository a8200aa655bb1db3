// Package marketdata provides OHLCV bar providers for backtest evaluation.
package marketdata

import (
	"context"
	"time"
)

// Bar is one OHLCV candle.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Provider defines the interface for fetching market data bars
type Provider interface {
	// Bars retrieves daily bars for the symbol within [start, end)
	Bars(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)

	// Name returns the name of the provider
	Name() string
}

// ProviderError represents errors from market data operations
type ProviderError struct {
	Provider string // Provider name
	Code     string // Error code (e.g., "not_found")
	Message  string // Error message
	Err      error  // Underlying error
}

func (e ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + ": " + e.Code + ": " + e.Message
}

func (e ProviderError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeNotFound     = "not_found"
	ErrCodeInvalidData  = "invalid_data"
	ErrCodeNetworkError = "network_error"
	ErrCodeServerError  = "server_error"
)

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, err error) ProviderError {
	return ProviderError{
		Provider: provider,
		Code:     code,
		Message:  message,
		Err:      err,
	}
}
