package workflow

import (
	"testing"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ifAction() *models.Action {
	return &models.Action{
		Type:   models.ActionIf,
		Params: &models.IfParams{Variable: "{{steps.a.result.count}}", Operator: "greaterThan", Value: "3"},
	}
}

func codes(errs []ValidationError) []string {
	result := make([]string, 0, len(errs))
	for _, err := range errs {
		result = append(result, err.Code)
	}

	return result
}

func TestValidate_ValidWorkflow(t *testing.T) {
	workflow := models.NewWorkflow("wf", "valid")
	workflow.Steps = []*models.Step{
		{ID: "a", Actions: []*models.Action{{Type: models.ActionMonitorPosts, Params: &models.MonitorPostsParams{Username: "acme"}}}},
		{ID: "check", Actions: []*models.Action{ifAction()}},
		{ID: "yes", Actions: []*models.Action{{Type: models.ActionFollowUser, Params: &models.FollowUserParams{User: "acme"}}}},
		{ID: "no", Actions: []*models.Action{}},
	}
	workflow.Edges = []*models.Edge{
		{Source: "a", Target: "check"},
		{Source: "check", Target: "yes", Branch: models.BranchOnTrue},
		{Source: "check", Target: "no", Branch: models.BranchOnFalse},
	}

	assert.Empty(t, Validate(workflow))
}

func TestValidate_CollectsEveryError(t *testing.T) {
	workflow := models.NewWorkflow("wf", "broken")
	workflow.Steps = []*models.Step{
		{ID: "a", Actions: []*models.Action{{Type: models.ActionComment, Params: &models.CommentParams{}}}},
		{ID: "b", Actions: []*models.Action{}},
	}
	workflow.Edges = []*models.Edge{
		{Source: "a", Target: "ghost"},
		{Source: "a", Target: "b", Branch: models.BranchOnTrue},
	}

	errs := Validate(workflow)

	assert.ElementsMatch(t, []string{
		CodeUnknownStep,
		CodeUnexpectedBranch,
		CodeMissingParam,
		CodeMissingParam,
	}, codes(errs))
}

func TestValidate_BranchCounts(t *testing.T) {
	testCases := []struct {
		name    string
		edges   []*models.Edge
		invalid bool
	}{
		{name: "no edges", edges: nil},
		{name: "unlabeled only", edges: []*models.Edge{{Source: "check", Target: "x"}}},
		{
			name: "both once",
			edges: []*models.Edge{
				{Source: "check", Target: "x", Branch: models.BranchOnTrue},
				{Source: "check", Target: "y", Branch: models.BranchOnFalse},
			},
		},
		{
			name:    "only onTrue",
			edges:   []*models.Edge{{Source: "check", Target: "x", Branch: models.BranchOnTrue}},
			invalid: true,
		},
		{
			name: "onTrue twice",
			edges: []*models.Edge{
				{Source: "check", Target: "x", Branch: models.BranchOnTrue},
				{Source: "check", Target: "y", Branch: models.BranchOnTrue},
				{Source: "check", Target: "y", Branch: models.BranchOnFalse},
			},
			invalid: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			workflow := models.NewWorkflow("wf", "branches")
			workflow.Steps = []*models.Step{
				{ID: "check", Actions: []*models.Action{ifAction()}},
				{ID: "x", Actions: []*models.Action{}},
				{ID: "y", Actions: []*models.Action{}},
			}
			workflow.Edges = tc.edges

			errs := Validate(workflow)
			if tc.invalid {
				assert.Equal(t, []string{CodeBranchCount}, codes(errs))
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestValidate_InvalidBranchLabel(t *testing.T) {
	workflow := models.NewWorkflow("wf", "labels")
	workflow.Steps = []*models.Step{
		{ID: "check", Actions: []*models.Action{ifAction()}},
		{ID: "x", Actions: []*models.Action{}},
	}
	workflow.Edges = []*models.Edge{{Source: "check", Target: "x", Branch: "maybe"}}

	assert.Contains(t, codes(Validate(workflow)), CodeInvalidBranch)
}

func TestValidate_RecursesIntoForEach(t *testing.T) {
	workflow := models.NewWorkflow("wf", "loops")
	workflow.Steps = []*models.Step{
		{ID: "loop", Actions: []*models.Action{{
			Type: models.ActionForEach,
			Params: &models.ForEachParams{
				List: "{{steps.a.result.posts}}",
				Actions: []*models.Action{
					{Type: models.ActionLikePost, Params: &models.LikePostParams{}},
					{Type: models.ActionComment, Params: &models.CommentParams{PostID: "{{item.id}}", Text: "great"}},
					ifAction(),
				},
			},
		}}},
	}

	errs := Validate(workflow)
	require.Len(t, errs, 2)

	assert.Equal(t, CodeMissingParam, errs[0].Code)
	assert.Equal(t, "postId", errs[0].Field)
	assert.Equal(t, "steps[loop].actions[0].params.actions[0].params", errs[0].Path)

	assert.Equal(t, CodeNestedContainer, errs[1].Code)
	assert.Equal(t, "steps[loop].actions[0].params.actions[2]", errs[1].Path)
}

func TestValidate_Fields(t *testing.T) {
	workflow := models.NewWorkflow("wf", "fields")
	workflow.Config.TimeoutMs = 0
	workflow.Steps = []*models.Step{
		{ID: "a", Actions: []*models.Action{}, Retry: &models.Retry{MaxAttempts: 0}},
		{ID: "a", Actions: []*models.Action{}, Condition: &models.StepCondition{Type: models.ConditionFailure, PreviousStep: "ghost"}},
	}

	assert.ElementsMatch(t, []string{
		CodeInvalidField,
		CodeInvalidField,
		CodeDuplicateStepID,
		CodeUnknownConditionRef,
	}, codes(Validate(workflow)))
}
