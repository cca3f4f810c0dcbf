// Package errs defines the error taxonomy shared by the simulation core.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientData marks a run whose rolling windows never fully populated.
// It is reported as a status, never returned from a run.
var ErrInsufficientData = errors.New("insufficient data: required features never became available")

// ConfigurationError reports an invalid weight, threshold or window size.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// Config builds a ConfigurationError with a formatted reason.
func Config(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DataError reports a bar series that cannot be simulated, such as
// non-monotonic timestamps or non-finite prices.
type DataError struct {
	Index  int
	Time   time.Time
	Reason string
}

func (e *DataError) Error() string {
	if e.Time.IsZero() {
		return fmt.Sprintf("data: bar %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("data: bar %d (%s): %s", e.Index, e.Time.UTC().Format(time.RFC3339), e.Reason)
}

// IsConfiguration reports whether err wraps a ConfigurationError.
func IsConfiguration(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsData reports whether err wraps a DataError.
func IsData(err error) bool {
	var target *DataError
	return errors.As(err, &target)
}
