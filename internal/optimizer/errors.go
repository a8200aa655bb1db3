package optimizer

import "fmt"

// ConfigurationError indicates an invalid grid, objective or tunable value.
// It is fatal: no partial run is attempted.
type ConfigurationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v (%s)", e.Field, e.Value, e.Reason)
}

// InsufficientRangeError indicates the date range cannot fit a single
// walk-forward train+test block.
type InsufficientRangeError struct {
	RangeDays    int
	RequiredDays int
}

func (e *InsufficientRangeError) Error() string {
	return fmt.Sprintf("date range of %d days is shorter than one walk-forward block of %d days", e.RangeDays, e.RequiredDays)
}

// EvaluationError represents a single combination/window failure. It is
// recovered locally by the evaluation driver and never aborts the run on its own.
type EvaluationError struct {
	Combination string
	Window      string
	Err         error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation failed for %s on window %s: %v", e.Combination, e.Window, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// EmptyPopulationError indicates every combination failed on every window.
type EmptyPopulationError struct {
	Attempted int
}

func (e *EmptyPopulationError) Error() string {
	return fmt.Sprintf("no combination produced a usable result (%d attempted)", e.Attempted)
}

// MissingOptionalDependencyError indicates a strategy or search mode was
// requested without its numeric collaborator wired in. Other strategies
// remain usable.
type MissingOptionalDependencyError struct {
	Capability string
}

func (e *MissingOptionalDependencyError) Error() string {
	return fmt.Sprintf("missing optional capability: %s is not wired in", e.Capability)
}
