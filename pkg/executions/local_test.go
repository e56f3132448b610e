package executions

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/socialflow/pkg/executor"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/testutil"
	"github.com/dukex/socialflow/pkg/variables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalRunner(t *testing.T) *LocalRunner {
	t.Helper()

	instant := executor.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
	runner := NewLocalRunner(executor.New(executor.NewDryRun(slog.Default()), slog.Default(), instant), slog.Default())

	t.Cleanup(func() { _ = runner.Close() })

	return runner
}

func TestLocalRunner_RunsSnapshotToCompletion(t *testing.T) {
	runner := newLocalRunner(t)

	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("like")),
		testutil.CreateTestStep(testutil.WithID("pause"), testutil.WithActions(testutil.Delay(1.0))),
	)

	id, err := runner.Submit(context.Background(), wf, "acct-1")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	runner.Wait()

	status, err := runner.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSucceeded, status.State)
	assert.Empty(t, status.Error)
	assert.Contains(t, status.PerStepResults, "like")
	assert.Contains(t, status.PerStepResults, "pause")
	assert.NotContains(t, status.Fields, "current_step")
}

func TestLocalRunner_StatusUnknownExecution(t *testing.T) {
	_, err := newLocalRunner(t).Status(context.Background(), "missing")

	assert.ErrorIs(t, err, models.ErrExecutionNotFound)
}

func TestLocalRunner_StopUnknownExecution(t *testing.T) {
	err := newLocalRunner(t).Stop(context.Background(), "missing", "acct-1")

	assert.ErrorIs(t, err, models.ErrExecutionNotFound)
}

func TestLocalRunner_StatusIsACopy(t *testing.T) {
	runner := newLocalRunner(t)

	id, err := runner.Submit(context.Background(), testutil.CreateTestWorkflow(testutil.CreateTestStep(testutil.WithID("like"))), "acct-1")
	require.NoError(t, err)

	runner.Wait()

	first, err := runner.Status(context.Background(), id)
	require.NoError(t, err)

	delete(first.PerStepResults, "like")

	second, err := runner.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Contains(t, second.PerStepResults, "like")
}

func TestLocalRun_StepResultsAreWrittenOnce(t *testing.T) {
	status := models.NewExecutionStatus("exec-1", models.ExecutionQueued)
	status.Fields = make(map[string]any)
	run := &localRun{status: status, control: &executor.Control{}}

	run.StepStarted("s1")
	run.StepFinished(&models.StepResult{StepID: "s1", Status: models.StepSucceeded})
	run.StepFinished(&models.StepResult{StepID: "s1", Status: models.StepFailed})
	run.IterationFinished("s1", models.IterationReport{Index: 2})

	snapshot := run.snapshot()
	assert.Equal(t, models.ExecutionRunning, snapshot.State)
	assert.Equal(t, models.StepSucceeded, snapshot.PerStepResults["s1"].Status)
	assert.Equal(t, 3, snapshot.Fields["iterations.s1"])
	assert.Equal(t, "s1", snapshot.Fields["current_step"])
}

func TestNormalizeState(t *testing.T) {
	testCases := []struct {
		input    string
		expected models.ExecutionState
	}{
		{"pending", models.ExecutionQueued},
		{"running", models.ExecutionRunning},
		{"completed", models.ExecutionSucceeded},
		{"error", models.ExecutionFailed},
		{"cancelled", models.ExecutionStopped},
		{"something-new", models.ExecutionRunning},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			assert.Equal(t, tc.expected, NormalizeState(tc.input))
		})
	}
}

func TestLocalRunner_PanicBecomesFailedStatus(t *testing.T) {
	boom := executor.PerformerFunc(func(context.Context, string, variables.ResolvedAction) (map[string]any, error) {
		panic("performer exploded")
	})

	runner := NewLocalRunner(executor.New(boom, slog.Default()), slog.Default())
	t.Cleanup(func() { _ = runner.Close() })

	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("like"), testutil.WithActions(testutil.Like("post-1"))),
	)

	id, err := runner.Submit(context.Background(), wf, "acct-1")
	require.NoError(t, err)

	runner.Wait()

	status, err := runner.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, status.State)
	assert.Contains(t, status.Error, "performer exploded")
}

func TestLocalRunner_NullActionFailsWithoutPanic(t *testing.T) {
	runner := newLocalRunner(t)

	wf := testutil.CreateTestWorkflow(
		&models.Step{ID: "s1", Actions: []*models.Action{nil}},
	)

	id, err := runner.Submit(context.Background(), wf, "acct-1")
	require.NoError(t, err)

	runner.Wait()

	status, err := runner.Status(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, status.State)
	assert.Contains(t, status.Error, models.ErrNullEntry.Error())
}

func TestLocalRunner_EvictsFinishedRuns(t *testing.T) {
	instant := executor.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
	runner := NewLocalRunner(
		executor.New(executor.NewDryRun(slog.Default()), slog.Default(), instant),
		slog.Default(),
		WithRetention(200*time.Millisecond),
	)
	t.Cleanup(func() { _ = runner.Close() })

	id, err := runner.Submit(context.Background(), testutil.CreateTestWorkflow(testutil.CreateTestStep()), "acct-1")
	require.NoError(t, err)

	runner.Wait()

	_, err = runner.Status(context.Background(), id)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := runner.Status(context.Background(), id)
		return errors.Is(err, models.ErrExecutionNotFound)
	}, 3*time.Second, 20*time.Millisecond)
}
