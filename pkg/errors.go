package pkg

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionConflict is returned when an append carries a stale sequence number
	ErrSessionConflict = errors.New("session sequence conflict")
	// ErrInvalidTurn is returned when a turn pair is not a user turn followed by an assistant turn
	ErrInvalidTurn = errors.New("invalid turn pair")
	// ErrSessionNotFound is returned when a session key has no live context
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionGone is returned together with ErrSessionConflict when an append
	// expected history but the session was cleared or swept
	ErrSessionGone = errors.New("session no longer exists")
)

// ConfigurationError reports a bad startup configuration. It is only
// produced while constructing components, never per call.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error in %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("configuration error in %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigError builds a ConfigurationError without a cause
func NewConfigError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}
