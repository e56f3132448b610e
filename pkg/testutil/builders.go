// Package testutil provides test data builders for workflows and steps.
package testutil

import (
	"github.com/dukex/socialflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestStep creates a step with one likePost action that can be overridden.
func CreateTestStep(overrides ...func(*models.Step)) *models.Step {
	step := &models.Step{
		ID:   "step-" + uuid.NewString()[:8],
		Name: "Test Step",
		Actions: []*models.Action{
			{Type: models.ActionLikePost, Params: &models.LikePostParams{PostID: "p1"}},
		},
	}

	for _, override := range overrides {
		override(step)
	}

	return step
}

// WithID sets the step ID.
func WithID(id string) func(*models.Step) {
	return func(s *models.Step) {
		s.ID = id
	}
}

// WithName sets the step name.
func WithName(name string) func(*models.Step) {
	return func(s *models.Step) {
		s.Name = name
	}
}

// WithActions replaces the step actions.
func WithActions(actions ...*models.Action) func(*models.Step) {
	return func(s *models.Step) {
		s.Actions = actions
	}
}

// WithRetry sets the step retry policy.
func WithRetry(maxAttempts, delayMs int) func(*models.Step) {
	return func(s *models.Step) {
		s.Retry = &models.Retry{MaxAttempts: maxAttempts, DelayMs: delayMs}
	}
}

// WithCondition gates the step on a previous step.
func WithCondition(conditionType models.ConditionType, previousStep string) func(*models.Step) {
	return func(s *models.Step) {
		s.Condition = &models.StepCondition{Type: conditionType, PreviousStep: previousStep}
	}
}

// Action builds an action with the given params.
func Action(actionType models.ActionType, params models.ActionParams) *models.Action {
	return &models.Action{Type: actionType, Params: params}
}

// Like builds a likePost action.
func Like(postID string) *models.Action {
	return Action(models.ActionLikePost, &models.LikePostParams{PostID: postID})
}

// Delay builds a delay action.
func Delay(seconds any) *models.Action {
	return Action(models.ActionDelay, &models.DelayParams{Seconds: seconds})
}

// If builds an if action.
func If(variable, operator, value string) *models.Action {
	return Action(models.ActionIf, &models.IfParams{Variable: variable, Operator: operator, Value: value})
}

// ForEach builds a forEach action over list.
func ForEach(list string, body ...*models.Action) *models.Action {
	return Action(models.ActionForEach, &models.ForEachParams{List: list, Actions: body})
}

// CreateTestWorkflow creates a workflow with the default configuration and the given steps.
func CreateTestWorkflow(steps ...*models.Step) *models.Workflow {
	workflow := models.NewWorkflow(uuid.NewString(), "Test Workflow")
	workflow.Description = "A workflow for testing"
	workflow.Steps = append(workflow.Steps, steps...)

	return workflow
}

// Connect appends an edge to the workflow.
func Connect(workflow *models.Workflow, source, target string, branch models.BranchLabel) {
	workflow.Edges = append(workflow.Edges, &models.Edge{Source: source, Target: target, Branch: branch})
}

// CreateTestRecord wraps a workflow into a persisted record for userID.
func CreateTestRecord(userID string, workflow *models.Workflow) *models.WorkflowRecord {
	return &models.WorkflowRecord{
		ID:       workflow.ID,
		UserID:   userID,
		Workflow: workflow,
	}
}
