package nn

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every configuration error of the model and
// of the training session built on top of it.
var ErrInvalidConfig = errors.New("invalid configuration")

// ConfigError reports an invalid configuration value.
type ConfigError struct {
	Field  string // Configuration field (e.g., "Blocks", "Branches")
	Value  any    // Offending value
	Reason string // What the value violates
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", ErrInvalidConfig, e.Field, e.Value, e.Reason)
}

// Unwrap makes errors.Is(err, ErrInvalidConfig) hold.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func atLeast(field string, value, minimum int) error {
	if value < minimum {
		return &ConfigError{Field: field, Value: value, Reason: fmt.Sprintf("must be >= %d", minimum)}
	}
	return nil
}
