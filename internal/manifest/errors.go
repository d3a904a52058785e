package manifest

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed caller input: a manifest document that
// fails the shape check, or a tool argument that cannot be used.
type ValidationError struct {
	// Index is the 1-based position of the offending document in the
	// manifest stream, or 0 when the error is not about a document.
	Index int
	// Field names the offending argument or JSON location, if known.
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	var prefix string
	if e.Index > 0 {
		prefix = fmt.Sprintf("document %d: ", e.Index)
	}
	if e.Field != "" {
		return fmt.Sprintf("%s%s: %s", prefix, e.Field, e.Reason)
	}
	return prefix + e.Reason
}

// NewValidationError returns a ValidationError about a named field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// AsValidationError unwraps err to a *ValidationError.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
