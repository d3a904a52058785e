package k8s

import (
	"errors"
	"fmt"
)

// ErrInClusterContextSwitch is returned by SwitchContext when the client
// uses in-cluster authentication.
var ErrInClusterContextSwitch = errors.New("cannot switch context when running in-cluster")

// UpstreamError wraps a failure reported by the API server or the client
// machinery underneath it. Unwrap keeps apierrors helpers such as
// apierrors.IsNotFound working on the wrapped error.
type UpstreamError struct {
	Operation string
	Resource  string
	Err       error
}

func (e *UpstreamError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s failed: %v", e.Operation, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Operation, e.Resource, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// AsUpstreamError returns the first *UpstreamError in err's chain.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

func upstream(operation, resource string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamError{Operation: operation, Resource: resource, Err: err}
}
