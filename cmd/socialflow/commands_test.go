package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeWorkflow(t *testing.T, wf *models.Workflow) string {
	t.Helper()

	data, err := json.Marshal(wf)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	command := newCommand()
	command.Writer = &out

	err := command.Run(t.Context(), append([]string{"socialflow"}, args...))

	return out.String(), err
}

func sampleWorkflow() *models.Workflow {
	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("watch"), testutil.WithActions(
			testutil.Action(models.ActionMonitorPosts, &models.MonitorPostsParams{Username: "golang"}),
		)),
		testutil.CreateTestStep(testutil.WithID("like"), testutil.WithActions(
			testutil.ForEach("{{steps.watch.result.posts}}", testutil.Like("{{item.id}}")),
		)),
	)
	testutil.Connect(wf, "watch", "like", models.BranchNone)

	return wf
}

func TestOrderCommand(t *testing.T) {
	out, err := runCLI(t, "order", writeWorkflow(t, sampleWorkflow()))
	require.NoError(t, err)

	var order []string
	require.NoError(t, json.Unmarshal([]byte(out), &order))
	assert.Equal(t, []string{"watch", "like"}, order)
}

func TestOrderCommand_Cycle(t *testing.T) {
	wf := sampleWorkflow()
	testutil.Connect(wf, "like", "watch", models.BranchNone)

	_, err := runCLI(t, "order", writeWorkflow(t, wf))
	require.ErrorIs(t, err, models.ErrCyclicGraph)
}

func TestVariablesCommand(t *testing.T) {
	path := writeWorkflow(t, sampleWorkflow())

	out, err := runCLI(t, "variables", "--upto", "like", path)
	require.NoError(t, err)
	assert.Contains(t, out, "{{steps.watch.result.posts}}")

	_, err = runCLI(t, "variables", path)
	require.ErrorIs(t, err, ErrMissingUpTo)
}

func TestValidateCommand_MissingFile(t *testing.T) {
	_, err := runCLI(t, "validate")
	require.ErrorIs(t, err, ErrMissingFile)
}

func TestCatalogCommand(t *testing.T) {
	out, err := runCLI(t, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, string(models.ActionSendDirectMessage))
	assert.Contains(t, out, string(models.ActionForEach))
}

func TestRunCommand(t *testing.T) {
	wf := testutil.CreateTestWorkflow(
		testutil.CreateTestStep(testutil.WithID("like"), testutil.WithActions(testutil.Like("post-1"))),
		testutil.CreateTestStep(testutil.WithID("pause"), testutil.WithActions(testutil.Delay(5))),
	)

	out, err := runCLI(t, "run", "--instant", writeWorkflow(t, wf))
	require.NoError(t, err)
	assert.Contains(t, out, string(models.ExecutionSucceeded))
}
