package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkflow_Validation_ValidWorkflow(t *testing.T) {
	workflow := NewWorkflow("wf-1", "Engage followers")
	workflow.Steps = append(workflow.Steps, &Step{
		ID:      "step-1",
		Name:    "Watch",
		Actions: []*Action{{Type: ActionMonitorPosts, Params: &MonitorPostsParams{Username: "acme"}}},
		Retry:   &Retry{MaxAttempts: 3, DelayMs: 500},
	})

	validate := validator.New()
	assert.NoError(t, validate.Struct(workflow))
}

func TestWorkflow_Validation_InvalidFields(t *testing.T) {
	testCases := []struct {
		name      string
		mutate    func(w *Workflow)
		fieldName string
	}{
		{
			name:      "missing name",
			mutate:    func(w *Workflow) { w.Name = "" },
			fieldName: "Name",
		},
		{
			name:      "zero timeout",
			mutate:    func(w *Workflow) { w.Config.TimeoutMs = 0 },
			fieldName: "TimeoutMs",
		},
		{
			name:      "unknown onError",
			mutate:    func(w *Workflow) { w.Config.OnError = "retry" },
			fieldName: "OnError",
		},
		{
			name: "retry without attempts",
			mutate: func(w *Workflow) {
				w.Steps = []*Step{{ID: "s", Retry: &Retry{MaxAttempts: 0}}}
			},
			fieldName: "MaxAttempts",
		},
		{
			name: "condition with unknown type",
			mutate: func(w *Workflow) {
				w.Steps = []*Step{{ID: "s", Condition: &StepCondition{Type: "sometimes", PreviousStep: "x"}}}
			},
			fieldName: "Type",
		},
	}

	validate := validator.New()

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			workflow := NewWorkflow("wf", "name")
			tc.mutate(workflow)

			err := validate.Struct(workflow)
			require.Error(t, err)

			var validationErrors validator.ValidationErrors
			require.ErrorAs(t, err, &validationErrors)
			assert.Equal(t, tc.fieldName, validationErrors[0].Field())
		})
	}
}

func TestWorkflow_JSONShape(t *testing.T) {
	workflow := NewWorkflow("wf-1", "Branching")
	workflow.Steps = []*Step{
		{ID: "a", Actions: []*Action{{Type: ActionIf, Params: &IfParams{Variable: "{{steps.x.result.success}}", Operator: "equals", Value: "true"}}}},
		{ID: "b", Actions: []*Action{}},
	}
	workflow.Edges = []*Edge{{Source: "a", Target: "b", Branch: BranchOnTrue}}

	encoded, err := json.Marshal(workflow)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(encoded, &generic))

	edges := generic["edges"].([]any)
	edge := edges[0].(map[string]any)
	assert.Equal(t, "a", edge["sourceStepId"])
	assert.Equal(t, "b", edge["targetStepId"])
	assert.Equal(t, "onTrue", edge["branchLabel"])

	config := generic["config"].(map[string]any)
	assert.InDelta(t, 300000.0, config["timeoutMs"], 0)
	assert.Equal(t, "stop", config["onError"])
}

func TestWorkflow_Clone_IsDeep(t *testing.T) {
	workflow := NewWorkflow("wf-1", "Original")
	workflow.Steps = []*Step{{ID: "a", Name: "first", Actions: []*Action{{Type: ActionDelay, Params: &DelayParams{Seconds: 5.0}}}}}

	clone, err := workflow.Clone()
	require.NoError(t, err)

	clone.Steps[0].Name = "changed"
	clone.Steps[0].Actions[0].Params.(*DelayParams).Seconds = 9.0

	assert.Equal(t, "first", workflow.Steps[0].Name)
	assert.InDelta(t, 5.0, workflow.Steps[0].Actions[0].Params.(*DelayParams).Seconds, 0)
}

func TestWorkflow_EdgeQueries(t *testing.T) {
	workflow := NewWorkflow("wf", "edges")
	workflow.Steps = []*Step{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	workflow.Edges = []*Edge{{Source: "a", Target: "b"}, {Source: "a", Target: "c"}, {Source: "b", Target: "c"}}

	assert.Len(t, workflow.OutgoingEdges("a"), 2)
	assert.Len(t, workflow.IncomingEdges("c"), 2)
	assert.Equal(t, 1, workflow.StepIndex("b"))
	assert.Equal(t, -1, workflow.StepIndex("z"))
	assert.Nil(t, workflow.StepByID("z"))
}

func TestWorkflowRecord_JSONKeys(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	record := WorkflowRecord{
		ID:        "wf-1",
		UserID:    "user-1",
		Workflow:  NewWorkflow("wf-1", "x"),
		Favorite:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	encoded, err := json.Marshal(record)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(encoded, &generic))

	for _, key := range []string{"id", "user_id", "workflow", "favorite", "created_at", "updated_at"} {
		assert.Contains(t, generic, key)
	}

	assert.Equal(t, "2024-05-01T12:00:00Z", generic["created_at"])
}

func TestRoutine_NextDueAt(t *testing.T) {
	routine, err := NewRoutine("r-1", "user-1", "wf-1", "acct-1", "*/5 * * * *")
	require.NoError(t, err)

	assert.True(t, routine.Active)
	assert.True(t, routine.NextDueAt.After(routine.CreatedAt))

	at := time.Date(2024, 1, 1, 10, 2, 0, 0, time.UTC)
	require.NoError(t, routine.MarkRun(at, "exec-1"))
	assert.Equal(t, time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC), routine.NextDueAt)
	assert.Equal(t, "exec-1", routine.LastExecutionID)

	_, err = NewRoutine("r-2", "user-1", "wf-1", "acct-1", "not a cron")
	assert.Error(t, err)
}

func TestExecutionState_IsTerminal(t *testing.T) {
	assert.False(t, ExecutionQueued.IsTerminal())
	assert.False(t, ExecutionRunning.IsTerminal())
	assert.True(t, ExecutionSucceeded.IsTerminal())
	assert.True(t, ExecutionFailed.IsTerminal())
	assert.True(t, ExecutionStopped.IsTerminal())
}

func TestWorkflow_UnmarshalJSON_RejectsNullEntries(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "null step", data: `{"name":"w","steps":[null]}`},
		{name: "null action", data: `{"name":"w","steps":[{"id":"s1","actions":[null]}]}`},
		{name: "null forEach child", data: `{"name":"w","steps":[{"id":"s1","actions":[{"type":"forEach","params":{"actions":[{"type":"likePost"},null]}}]}]}`},
		{name: "null edge", data: `{"name":"w","steps":[],"edges":[null]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var workflow Workflow
			err := json.Unmarshal([]byte(tt.data), &workflow)
			assert.ErrorIs(t, err, ErrNullEntry)
		})
	}

	var workflow Workflow
	require.NoError(t, json.Unmarshal([]byte(`{"name":"w","steps":[{"id":"s1","actions":[{"type":"delay"}]}]}`), &workflow))
	assert.Len(t, workflow.Steps[0].Actions, 1)
}
