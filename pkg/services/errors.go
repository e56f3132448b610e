// Package services provides standardized error types for service layer operations.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest   = errors.New("invalid request")
	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidSortOrder = errors.New("invalid sort order")
	ErrEmptyUserID      = errors.New("user ID cannot be empty")

	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrWorkflowNil          = errors.New("workflow cannot be nil")

	// Business Logic Conflicts (409 Conflict).
	ErrWorkflowInUse = errors.New("workflow is used by an active routine")

	// ErrWorkflowNotFound is returned when a workflow is missing or owned by another user.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

	// ErrRoutineNotFound is returned when a routine is missing or owned by another user.
	ErrRoutineNotFound = persistence.ErrRoutineNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSortField) ||
		errors.Is(err, ErrInvalidSortOrder) ||
		errors.Is(err, ErrEmptyUserID) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, models.ErrUnknownActionType) ||
		errors.Is(err, models.ErrIndexOutOfRange) ||
		errors.Is(err, models.ErrInvalidBranchLabel) ||
		errors.Is(err, models.ErrParamsMismatch) ||
		errors.Is(err, models.ErrNullEntry)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowInUse) ||
		errors.Is(err, models.ErrCyclicGraph)
}

// IsNotFoundError checks if an error names a missing resource that should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrRoutineNotFound) ||
		errors.Is(err, models.ErrStepNotFound) ||
		errors.Is(err, models.ErrEdgeNotFound) ||
		errors.Is(err, models.ErrExecutionNotFound) ||
		errors.Is(err, persistence.ErrExecutionNotFound)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
