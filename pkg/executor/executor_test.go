package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/testutil"
	"github.com/dukex/socialflow/pkg/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu         sync.Mutex
	started    []string
	finished   []string
	iterations []models.IterationReport
}

func (r *recorder) StepStarted(stepID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.started = append(r.started, stepID)
}

func (r *recorder) StepFinished(result *models.StepResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.finished = append(r.finished, result.StepID)
}

func (r *recorder) IterationFinished(_ string, report models.IterationReport) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.iterations = append(r.iterations, report)
}

type performed struct {
	accountRef string
	action     variables.ResolvedAction
}

type fakePerformer struct {
	mu      sync.Mutex
	calls   []performed
	results map[models.ActionType]map[string]any
	fail    map[models.ActionType]int
}

func (f *fakePerformer) Perform(_ context.Context, accountRef string, action variables.ResolvedAction) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, performed{accountRef: accountRef, action: action})

	if f.fail[action.Type] > 0 {
		f.fail[action.Type]--

		return nil, errors.New("network unavailable")
	}

	if result, ok := f.results[action.Type]; ok {
		return result, nil
	}

	return map[string]any{"success": true}, nil
}

func newTestExecutor(performer Performer, sleeps *[]time.Duration) *Executor {
	return New(performer, slog.Default(), WithSleep(func(ctx context.Context, d time.Duration) error {
		if sleeps != nil {
			*sleeps = append(*sleeps, d)
		}

		return ctx.Err()
	}))
}

func TestRun_EndToEndForEachOverMonitoredPosts(t *testing.T) {
	performer := &fakePerformer{
		results: map[models.ActionType]map[string]any{
			models.ActionMonitorPosts: {"posts": []any{map[string]any{"id": "p1"}}},
		},
	}

	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("step-1"), testutil.WithActions(
			testutil.Action(models.ActionMonitorPosts, &models.MonitorPostsParams{Username: "alice", Limit: 10.0}),
		)),
		testutil.CreateTestStep(testutil.WithID("step-2"), testutil.WithActions(
			testutil.ForEach("{{steps.step-1.result.posts}}", testutil.Like("{{item.id}}")),
		)),
	)

	result := newTestExecutor(performer, nil).Run(context.Background(), "exec-1", wf, "acct", nil, nil)

	require.Equal(t, models.ExecutionSucceeded, result.State, result.Error)
	require.Len(t, performer.calls, 2)

	like := performer.calls[1]
	assert.Equal(t, "acct", like.accountRef)
	assert.Equal(t, models.ActionLikePost, like.action.Type)
	assert.Equal(t, "p1", like.action.Params["postId"])

	step2 := result.Steps["step-2"]
	require.NotNil(t, step2)
	assert.Equal(t, 1, step2.Result["iterations"])
	require.Len(t, step2.Iterations, 1)
	assert.Equal(t, map[string]any{"id": "p1"}, step2.Iterations[0].Item)
}

func TestRun_ForEachReportsIterationsInOrder(t *testing.T) {
	var sleeps []time.Duration

	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("numbers"), testutil.WithActions(
			testutil.Action(models.ActionMonitorMessages, &models.MonitorMessagesParams{Duration: 1.0}),
		)),
		testutil.CreateTestStep(testutil.WithID("loop"), testutil.WithActions(
			testutil.ForEach("{{steps.numbers.result.users}}", testutil.Delay(1.0)),
		)),
	)

	performer := &fakePerformer{
		results: map[models.ActionType]map[string]any{
			models.ActionMonitorMessages: {"users": []any{1.0, 2.0, 3.0}},
		},
	}
	reporter := &recorder{}

	result := newTestExecutor(performer, &sleeps).Run(context.Background(), "exec-1", wf, "acct", nil, reporter)

	require.Equal(t, models.ExecutionSucceeded, result.State, result.Error)
	require.Len(t, reporter.iterations, 3)

	for i, report := range reporter.iterations {
		assert.Equal(t, i, report.Index)
		assert.Equal(t, float64(i+1), report.Item)
	}

	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, sleeps)
}

func TestRun_ForEachOverNonList(t *testing.T) {
	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("a")),
		testutil.CreateTestStep(testutil.WithID("loop"), testutil.WithActions(
			testutil.ForEach("{{steps.a.result.success}}", testutil.Delay(1.0)),
		)),
	)

	result := newTestExecutor(&fakePerformer{}, nil).Run(context.Background(), "exec-1", wf, "acct", nil, nil)

	assert.Equal(t, models.ExecutionFailed, result.State)
	assert.Contains(t, result.Steps["loop"].Error, ErrNotAList.Error())
}

func TestRun_BranchPruning(t *testing.T) {
	testCases := []struct {
		name    string
		value   string
		taken   string
		skipped string
		outcome string
	}{
		{name: "true branch", value: "5", taken: "yes", skipped: "no", outcome: "true"},
		{name: "false branch", value: "6", taken: "no", skipped: "yes", outcome: "false"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			performer := &fakePerformer{
				results: map[models.ActionType]map[string]any{
					models.ActionMonitorPosts: {"count": 5.0},
				},
			}

			wf := testutil.CreateTestWorkflow(
				testutil.CreateTestStep(testutil.WithID("count"), testutil.WithActions(
					testutil.Action(models.ActionMonitorPosts, &models.MonitorPostsParams{Username: "bob"}),
				)),
				testutil.CreateTestStep(testutil.WithID("check"), testutil.WithActions(
					testutil.If("{{steps.count.result.count}}", "equals", tc.value),
				)),
				testutil.CreateTestStep(testutil.WithID("yes")),
				testutil.CreateTestStep(testutil.WithID("no")),
				testutil.CreateTestStep(testutil.WithID("after")),
			)
			testutil.Connect(wf, "check", "yes", models.BranchOnTrue)
			testutil.Connect(wf, "check", "no", models.BranchOnFalse)
			testutil.Connect(wf, tc.taken, "after", models.BranchNone)
			testutil.Connect(wf, tc.skipped, "after", models.BranchNone)

			result := newTestExecutor(performer, nil).Run(context.Background(), "exec-1", wf, "acct", nil, nil)

			require.Equal(t, models.ExecutionSucceeded, result.State, result.Error)
			assert.Equal(t, tc.outcome, result.Steps["check"].Outcome)
			assert.Equal(t, models.StepSucceeded, result.Steps[tc.taken].Status)
			assert.Equal(t, models.StepSkipped, result.Steps[tc.skipped].Status)
			assert.Equal(t, models.StepSucceeded, result.Steps["after"].Status)
		})
	}
}

func TestRun_IfOnMissingVariableIsEmpty(t *testing.T) {
	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("gate"), testutil.WithActions(
			testutil.If("{{steps.missing.result.users}}", "isEmpty", ""),
		)),
	)

	result := newTestExecutor(&fakePerformer{}, nil).Run(context.Background(), "exec-1", wf, "acct", nil, nil)

	require.Equal(t, models.ExecutionSucceeded, result.State, result.Error)
	assert.Equal(t, "true", result.Steps["gate"].Outcome)
	assert.Equal(t, true, result.Steps["gate"].Result["condition"])
}

func TestRun_StepConditions(t *testing.T) {
	performer := &fakePerformer{fail: map[models.ActionType]int{models.ActionFollowUser: 1}}

	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("follow"), testutil.WithActions(
			testutil.Action(models.ActionFollowUser, &models.FollowUserParams{User: "carol"}),
		)),
		testutil.CreateTestStep(testutil.WithID("on-success"), testutil.WithCondition(models.ConditionSuccess, "follow")),
		testutil.CreateTestStep(testutil.WithID("on-failure"), testutil.WithCondition(models.ConditionFailure, "follow")),
		testutil.CreateTestStep(testutil.WithID("always"), testutil.WithCondition(models.ConditionAlways, "follow")),
	)
	wf.Config.OnError = models.OnErrorContinue

	result := newTestExecutor(performer, nil).Run(context.Background(), "exec-1", wf, "acct", nil, nil)

	assert.Equal(t, models.ExecutionFailed, result.State)
	assert.Equal(t, models.StepFailed, result.Steps["follow"].Status)
	assert.Equal(t, models.StepSkipped, result.Steps["on-success"].Status)
	assert.Equal(t, models.StepSucceeded, result.Steps["on-failure"].Status)
	assert.Equal(t, models.StepSucceeded, result.Steps["always"].Status)
}

func TestRun_Retry(t *testing.T) {
	var sleeps []time.Duration

	performer := &fakePerformer{fail: map[models.ActionType]int{models.ActionLikePost: 2}}
	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("like"), testutil.WithRetry(3, 250)),
	)

	result := newTestExecutor(performer, &sleeps).Run(context.Background(), "exec-1", wf, "acct", nil, nil)

	require.Equal(t, models.ExecutionSucceeded, result.State, result.Error)
	assert.Equal(t, 3, result.Steps["like"].Attempts)
	assert.Empty(t, result.Steps["like"].Error)
	assert.Equal(t, []time.Duration{250 * time.Millisecond, 250 * time.Millisecond}, sleeps)
}

func TestRun_OnErrorStopHaltsRun(t *testing.T) {
	performer := &fakePerformer{fail: map[models.ActionType]int{models.ActionLikePost: 1}}
	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("first")),
		testutil.CreateTestStep(testutil.WithID("second")),
	)

	result := newTestExecutor(performer, nil).Run(context.Background(), "exec-1", wf, "acct", nil, nil)

	assert.Equal(t, models.ExecutionFailed, result.State)
	assert.Contains(t, result.Error, "step first failed")
	assert.NotContains(t, result.Steps, "second")
}

func TestRun_OnErrorContinueRunsRemainingSteps(t *testing.T) {
	performer := &fakePerformer{fail: map[models.ActionType]int{models.ActionLikePost: 1}}
	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("first")),
		testutil.CreateTestStep(testutil.WithID("second")),
	)
	wf.Config.OnError = models.OnErrorContinue

	result := newTestExecutor(performer, nil).Run(context.Background(), "exec-1", wf, "acct", nil, nil)

	assert.Equal(t, models.ExecutionFailed, result.State)
	assert.Equal(t, models.StepSucceeded, result.Steps["second"].Status)
}

func TestRun_UnresolvedVariableFailsStep(t *testing.T) {
	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("like"), testutil.WithActions(
			testutil.Like("{{steps.ghost.result.postId}}"),
		)),
	)

	result := newTestExecutor(&fakePerformer{}, nil).Run(context.Background(), "exec-1", wf, "acct", nil, nil)

	assert.Equal(t, models.ExecutionFailed, result.State)
	assert.Contains(t, result.Steps["like"].Error, "ghost")
}

func TestRun_CyclicSnapshotFails(t *testing.T) {
	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("a")),
		testutil.CreateTestStep(testutil.WithID("b")),
	)
	testutil.Connect(wf, "a", "b", models.BranchNone)
	testutil.Connect(wf, "b", "a", models.BranchNone)

	result := newTestExecutor(&fakePerformer{}, nil).Run(context.Background(), "exec-1", wf, "acct", nil, nil)

	assert.Equal(t, models.ExecutionFailed, result.State)
	assert.Contains(t, result.Error, "cycle")
	assert.Empty(t, result.Steps)
}

func TestRun_Timeout(t *testing.T) {
	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("wait"), testutil.WithActions(testutil.Delay(10.0))),
		testutil.CreateTestStep(testutil.WithID("after")),
	)
	wf.Config.TimeoutMs = 20

	result := New(&fakePerformer{}, slog.Default()).Run(context.Background(), "exec-1", wf, "acct", nil, nil)

	assert.Equal(t, models.ExecutionFailed, result.State)
	assert.Equal(t, ErrTimeout.Error(), result.Error)
	assert.NotContains(t, result.Steps, "after")
}

func TestRun_Stop(t *testing.T) {
	control := &Control{}
	performer := PerformerFunc(func(context.Context, string, variables.ResolvedAction) (map[string]any, error) {
		control.Stop()

		return map[string]any{"success": true}, nil
	})

	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("first")),
		testutil.CreateTestStep(testutil.WithID("second")),
	)

	result := newTestExecutor(performer, nil).Run(context.Background(), "exec-1", wf, "acct", control, nil)

	assert.Equal(t, models.ExecutionStopped, result.State)
	assert.Equal(t, models.StepSucceeded, result.Steps["first"].Status)
	assert.NotContains(t, result.Steps, "second")
}

func TestRun_StopBetweenIterations(t *testing.T) {
	control := &Control{}
	calls := 0
	performer := PerformerFunc(func(_ context.Context, _ string, action variables.ResolvedAction) (map[string]any, error) {
		if action.Type == models.ActionMonitorMessages {
			return map[string]any{"users": []any{"a", "b", "c"}}, nil
		}

		calls++
		control.Stop()

		return map[string]any{"success": true}, nil
	})

	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("inbox"), testutil.WithActions(
			testutil.Action(models.ActionMonitorMessages, &models.MonitorMessagesParams{Duration: 1.0}),
		)),
		testutil.CreateTestStep(testutil.WithID("follow-all"), testutil.WithActions(
			testutil.ForEach("{{steps.inbox.result.users}}",
				testutil.Action(models.ActionFollowUser, &models.FollowUserParams{User: "{{item}}"})),
		)),
	)

	result := newTestExecutor(performer, nil).Run(context.Background(), "exec-1", wf, "acct", control, nil)

	assert.Equal(t, models.ExecutionStopped, result.State)
	assert.Equal(t, 1, calls)
	assert.Len(t, result.Steps["follow-all"].Iterations, 1)
}

func TestDryRun_ProducesDeclaredLeaves(t *testing.T) {
	dryRun := NewDryRun(slog.Default())

	result, err := dryRun.Perform(context.Background(), "acct", variables.ResolvedAction{Type: models.ActionMonitorPosts})
	require.NoError(t, err)
	assert.Equal(t, []any{}, result["posts"])
	assert.Equal(t, true, result["success"])

	result, err = dryRun.Perform(context.Background(), "acct", variables.ResolvedAction{Type: models.ActionComment})
	require.NoError(t, err)
	assert.NotEmpty(t, result["commentId"])
}
