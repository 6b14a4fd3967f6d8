package form

import (
	"errors"
	"fmt"
)

var (
	// ErrDestroyed is returned by operations on a torn-down form or field.
	ErrDestroyed = errors.New("form: destroyed")
	// ErrNoFixedPoint is returned when repeated check passes keep changing
	// state beyond the configured limit.
	ErrNoFixedPoint = errors.New("form: expressions did not settle")
)

// ConfigError reports a malformed field configuration.
type ConfigError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("form: config %s: %s", e.Path, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ExpressionError reports an expression that failed or produced an unusable
// value.
type ExpressionError struct {
	Field    FieldID
	Key      string
	Property string
	Err      error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("form: field #%d (%s) expression %s: %v", e.Field, displayKey(e.Key), e.Property, e.Err)
}

func (e *ExpressionError) Unwrap() error { return e.Err }

// AttachError reports a control that could not be attached to its slot.
type AttachError struct {
	Field  FieldID
	Key    string
	Reason string
}

func (e *AttachError) Error() string {
	return fmt.Sprintf("form: field #%d (%s) attach: %s", e.Field, displayKey(e.Key), e.Reason)
}

// HookError reports a lifecycle hook that failed or panicked.
type HookError struct {
	Field FieldID
	Key   string
	Hook  string
	Err   error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("form: field #%d (%s) hook %s: %v", e.Field, displayKey(e.Key), e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

func displayKey(key string) string {
	if key == "" {
		return "no key"
	}
	return "key " + key
}
