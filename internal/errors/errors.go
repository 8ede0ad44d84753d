// Package errors provides structured error types for the live tracker.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrAlreadyTerminal = errors.New("project already completed")
	ErrInvalidInput    = errors.New("invalid input")
)

// StoreError represents a failed persistence write. The in-memory state
// stays authoritative, so callers log these instead of propagating them.
type StoreError struct {
	Op        string
	ProjectID string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s failed for project %s: %v", e.Op, e.ProjectID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps a persistence failure with its operation context.
func NewStoreError(op, projectID string, err error) *StoreError {
	return &StoreError{Op: op, ProjectID: projectID, Err: err}
}
