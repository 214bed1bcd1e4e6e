package pipeline

import "fmt"

// InvalidOutputError means a remote agent returned syntactically valid but
// semantically empty content. Retryable.
type InvalidOutputError struct {
	Stage string
}

func (e *InvalidOutputError) Error() string {
	return fmt.Sprintf("stage %s returned empty or invalid output", e.Stage)
}

// RetriesExhaustedError is terminal for the current stage or run. It wraps
// the last underlying cause.
type RetriesExhaustedError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }
