// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrDocumentNotFound is returned by a Store for a missing document.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrRoutineNotFound indicates a routine was not found by the given identifier.
	ErrRoutineNotFound = errors.New("routine not found")

	// ErrInvalidSortField indicates a list request sorted by an unsupported field.
	ErrInvalidSortField = errors.New("invalid sort field")

	// ErrInvalidDocumentID indicates an id that cannot be used as a storage key.
	ErrInvalidDocumentID = errors.New("invalid document id")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// DocumentError wraps a store failure with the collection and id involved.
type DocumentError struct {
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s operation failed for %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

func (e *DocumentError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsRoutineNotFound checks if an error indicates a routine was not found.
func IsRoutineNotFound(err error) bool {
	return errors.Is(err, ErrRoutineNotFound)
}

// IsInvalidSortField checks if an error indicates an unsupported sort field.
func IsInvalidSortField(err error) bool {
	return errors.Is(err, ErrInvalidSortField)
}
