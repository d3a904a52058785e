package guard

import (
	"errors"
	"fmt"
)

// Code identifies the kind of guard violation.
type Code string

// Violation codes.
const (
	CodeReadOnlyBlocked     Code = "READ_ONLY_BLOCKED"
	CodeNamespaceNotAllowed Code = "NS_NOT_ALLOWED"
	CodeKindNotAllowed      Code = "KIND_NOT_ALLOWED"
	CodeRateLimit           Code = "RATE_LIMIT"
)

// Violation is returned when an operation is denied. It carries a
// human-readable message and a remediation hint for the caller.
type Violation struct {
	Code       Code   `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Error implements the error interface.
func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Message)
}

// AsViolation extracts a *Violation from err, if it wraps one.
func AsViolation(err error) (*Violation, bool) {
	var v *Violation
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}

// IsCode reports whether err is a violation with the given code.
func IsCode(err error, code Code) bool {
	v, ok := AsViolation(err)
	return ok && v.Code == code
}

func readOnlyBlocked(operation string) *Violation {
	return &Violation{
		Code:       CodeReadOnlyBlocked,
		Message:    fmt.Sprintf("%s is blocked in read-only mode", operation),
		Suggestion: fmt.Sprintf("Unset %s or use dryRun only", EnvReadOnly),
	}
}

func namespaceNotAllowed(namespace string) *Violation {
	return &Violation{
		Code:       CodeNamespaceNotAllowed,
		Message:    fmt.Sprintf("Namespace %s is not in allowlist", namespace),
		Suggestion: fmt.Sprintf("Add namespace to %s", EnvNamespaceAllowlist),
	}
}

func kindNotAllowed(kind string) *Violation {
	return &Violation{
		Code:       CodeKindNotAllowed,
		Message:    fmt.Sprintf("Kind %s is not in allowlist", kind),
		Suggestion: fmt.Sprintf("Add kind to %s", EnvKindAllowlist),
	}
}

// RateLimitExceeded returns the violation reported when an operation's
// token bucket is empty.
func RateLimitExceeded() *Violation {
	return &Violation{
		Code:       CodeRateLimit,
		Message:    "Rate limit exceeded",
		Suggestion: "Slow down or try again shortly",
	}
}
