package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Application exit codes define the standard exit statuses for the application.
// These codes are used to signal the outcome of the program execution to the OS.
const (
	ExitSuccess        = 0   // Indicates successful execution.
	ExitErrorGeneric   = 1   // Indicates a generic error.
	ExitErrorThreshold = 2   // Indicates the memory threshold was exceeded.
	ExitErrorConfig    = 4   // Indicates a configuration error.
	ExitErrorCanceled  = 130 // Indicates the operation was canceled (e.g., SIGINT).
)

// ConfigError represents a user configuration error, such as invalid flags or
// values. It indicates that the watcher cannot be constructed from the given
// parameters and is never recovered from.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
//
// Parameters:
//   - format: A format string (see fmt.Sprintf).
//   - a: Arguments to be formatted into the string.
//
// Returns:
//   - error: A new ConfigError instance containing the formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// NotStartedError is returned when Stop is called on a watcher that is not
// running. It surfaces a caller logic error synchronously rather than being
// swallowed like transient sampling failures.
type NotStartedError struct{}

// Error returns the error message for a NotStartedError.
func (NotStartedError) Error() string { return "watcher is not running" }

// ThresholdError reports that memory usage exceeded the configured threshold.
// It is produced only by the scoped Watch helper after the monitored work
// completes; the sampling loop itself never raises it.
type ThresholdError struct {
	// CurrentMB is the resident set size observed, in megabytes.
	CurrentMB float64
	// ThresholdMB is the configured limit, in megabytes.
	ThresholdMB float64
}

// Error returns a formatted message describing the threshold violation.
func (e ThresholdError) Error() string {
	return fmt.Sprintf("memory usage %.2fMB exceeds threshold %.2fMB", e.CurrentMB, e.ThresholdMB)
}

// SamplingError wraps a failure to read a memory snapshot while preserving
// the original cause. The watcher loop logs these and continues; they reach
// callers only from synchronous queries such as CurrentMemory.
type SamplingError struct {
	// Cause is the underlying error from the snapshot source.
	Cause error
}

// Error returns the error message from the underlying cause.
func (e SamplingError) Error() string { return "sampling failed: " + e.Cause.Error() }

// Unwrap returns the original wrapped error, allowing for error chain
// inspection (e.g., using errors.Is or errors.As).
func (e SamplingError) Unwrap() error { return e.Cause }

// WrapError wraps an error with additional context using fmt.Errorf and %w.
// This allows the wrapped error to be unwrapped with errors.Unwrap() and
// checked with errors.Is() and errors.As().
//
// Parameters:
//   - err: The error to wrap.
//   - format: A format string for the context message.
//   - args: Arguments for the format string.
//
// Returns:
//   - error: The wrapped error, or nil if err is nil.
func WrapError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// IsContextError checks if the error is a context cancellation or deadline exceeded error.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
