package orchestrator

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when Process is called before Initialize.
var ErrNotInitialized = errors.New("orchestrator not initialized")

// ErrAlreadyInitialized is returned when Initialize is called twice
// without an intervening shutdown.
var ErrAlreadyInitialized = errors.New("orchestrator already initialized")

// ErrShuttingDown is returned for new orchestrations once shutdown has begun.
var ErrShuttingDown = errors.New("orchestrator shutting down")

// ExecutionError wraps a systemic failure of one orchestration call.
// Per-agent failures never produce this; they are recorded as failed
// individual results inside a completed orchestration.
type ExecutionError struct {
	OrchestrationID string
	Stage           string
	Err             error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("orchestration %s failed at %s: %v", e.OrchestrationID, e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func execErr(id, stage string, err error) *ExecutionError {
	return &ExecutionError{OrchestrationID: id, Stage: stage, Err: err}
}
