// Package web provides HTTP request and response types for the workflow API.
package web

import (
	"github.com/dukex/socialflow/pkg/models"
)

// UserIDHeader carries the authenticated user. Authentication happens upstream.
const UserIDHeader = "X-User-ID"

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string         `json:"name"             validate:"required,min=1"`
	Description string         `json:"description"`
	Steps       []*models.Step `json:"steps,omitempty"`
	Edges       []*models.Edge `json:"edges,omitempty"`
	Config      *models.Config `json:"config,omitempty"`
}

// UpdateWorkflowRequest replaces the content of an existing workflow.
// Omitted fields keep their stored value.
type UpdateWorkflowRequest struct {
	Name        *string        `json:"name,omitempty"        validate:"omitempty,min=1"`
	Description *string        `json:"description,omitempty"`
	Steps       []*models.Step `json:"steps,omitempty"`
	Edges       []*models.Edge `json:"edges,omitempty"`
	Config      *models.Config `json:"config,omitempty"`
}

// FavoriteRequest marks or unmarks a workflow as a favourite.
type FavoriteRequest struct {
	Favorite bool `json:"favorite"`
}

// AddStepRequest appends a step.
type AddStepRequest struct {
	Name string `json:"name"`
}

// UpdateStepRequest changes step settings. ClearRetry and ClearCondition remove the stored value.
type UpdateStepRequest struct {
	Name           *string               `json:"name,omitempty"`
	Retry          *models.Retry         `json:"retry,omitempty"`
	Condition      *models.StepCondition `json:"condition,omitempty"`
	Position       *models.Position      `json:"position,omitempty"`
	ClearRetry     bool                  `json:"clear_retry,omitempty"`
	ClearCondition bool                  `json:"clear_condition,omitempty"`
}

// AddActionRequest appends an action with catalog defaults.
type AddActionRequest struct {
	Type models.ActionType `json:"type" validate:"required"`
}

// MoveActionRequest reorders an action within its step.
type MoveActionRequest struct {
	To int `json:"to" validate:"min=0"`
}

// EdgeRequest names an edge between two steps.
type EdgeRequest struct {
	Source string             `json:"sourceStepId" validate:"required"`
	Target string             `json:"targetStepId" validate:"required"`
	Branch models.BranchLabel `json:"branchLabel,omitempty"`
}

// StepResponse returns the id of a new step with the updated workflow.
type StepResponse struct {
	StepID   string                 `json:"step_id"`
	Workflow *models.WorkflowRecord `json:"workflow"`
}

// ActionResponse returns the index of a new action with the updated workflow.
type ActionResponse struct {
	Index    int                    `json:"index"`
	Workflow *models.WorkflowRecord `json:"workflow"`
}

// SubmitExecutionRequest runs a stored workflow for an account.
type SubmitExecutionRequest struct {
	AccountID string `json:"account_id" validate:"required"`
}

// SubmitExecutionResponse mirrors the runner's submit answer.
type SubmitExecutionResponse struct {
	ExecutionID string                `json:"execution_id"`
	Status      models.ExecutionState `json:"status"`
}

// StopExecutionRequest stops a running execution.
type StopExecutionRequest struct {
	AccountID string `json:"account_id"`
}

// CreateRoutineRequest schedules a stored workflow.
type CreateRoutineRequest struct {
	WorkflowID     string `json:"workflow_id"     validate:"required"`
	AccountID      string `json:"account_id"      validate:"required"`
	CronExpression string `json:"cron_expression" validate:"required"`
}
