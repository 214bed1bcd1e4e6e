package stage

import (
	"errors"
	"fmt"
)

// ErrEndpointNotConfigured means no endpoint is bound for a stage. This is a
// deployment defect: fatal, never retried.
var ErrEndpointNotConfigured = errors.New("stage endpoint not configured")

// TransportError is a network failure or non-2xx response from a remote
// agent. Retryable.
type TransportError struct {
	Stage      string
	Endpoint   string
	StatusCode int // 0 when the request never completed.
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("stage %s: endpoint returned %d", e.Stage, e.StatusCode)
	}
	return fmt.Sprintf("stage %s: transport failure: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
