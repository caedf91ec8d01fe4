package core

import "github.com/pkg/errors"

// FieldError reports a violation on a single named field, e.g. a generation
// request whose valid_to precedes its valid_from.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries a top-level error plus the per-field violations
// behind it; the HTTP layer renders Fields as a field -> message map.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// shutdown signals that the service is in an unrecoverable state and the
// process should stop so the supervisor can restart it.
type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

// IsShutdown reports whether err, or its cause, requests a shutdown.
func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
