package redactor

import (
	"errors"
	"fmt"
)

// ConfigError reports an invalid redactor or recognizer configuration:
// a bad regex pattern, a conflicting entity-type registration, or an
// out-of-range fuzzy level. Callers should reconfigure and retry.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("redactor config: %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("redactor config: %v", e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DetectionError wraps a failure from the entity detector. The underlying
// error is preserved unchanged and is never retried internally; retry
// policy belongs to the caller.
type DetectionError struct {
	Err error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("entity detection: %v", e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// RestoreLookupError reports a placeholder-shaped token in restore input
// that has no entry in the mapping table. This is a data-integrity signal:
// either the wrong mapping was supplied or the redacted text was altered.
type RestoreLookupError struct {
	Token string
}

func (e *RestoreLookupError) Error() string {
	return fmt.Sprintf("restore: no mapping entry for placeholder %q", e.Token)
}

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsDetectionError reports whether err is (or wraps) a DetectionError.
func IsDetectionError(err error) bool {
	var de *DetectionError
	return errors.As(err, &de)
}

// IsRestoreLookupError reports whether err is (or wraps) a RestoreLookupError.
func IsRestoreLookupError(err error) bool {
	var re *RestoreLookupError
	return errors.As(err, &re)
}
