package remote

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRunner(t *testing.T, handler http.HandlerFunc) *Runner {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewRunner(server.URL+"/", slog.Default(), WithHTTPClient(server.Client()), WithRetry(3, time.Millisecond))
}

func TestRunner_SubmitSendsWorkflowAndInstanceName(t *testing.T) {
	var received map[string]any

	runner := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/workflows/execute", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		_, _ = w.Write([]byte(`{"execution_id":"exec-9","status":"queued"}`))
	})

	wf := testutil.CreateTestWorkflow(testutil.CreateTestStep(testutil.WithID("s1")))

	id, err := runner.Submit(context.Background(), wf, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "exec-9", id)
	assert.Equal(t, "acct-1", received["instanceName"])
	assert.Equal(t, wf.ID, received["id"])
	assert.Len(t, received["steps"], 1)
}

func TestRunner_SubmitIsNotRetried(t *testing.T) {
	var calls atomic.Int32

	runner := newTestRunner(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := runner.Submit(context.Background(), testutil.CreateTestWorkflow(testutil.CreateTestStep()), "acct-1")

	assert.ErrorIs(t, err, ErrRunnerUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunner_StatusDecodesDocument(t *testing.T) {
	runner := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/workflows/status/exec-1", r.URL.Path)

		_, _ = w.Write([]byte(`{
			"status": "completed",
			"per_step_results": {"s1": {"status": "succeeded", "result": {"count": 2}}},
			"progress": 100
		}`))
	})

	status, err := runner.Status(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionSucceeded, status.State)
	require.Contains(t, status.PerStepResults, "s1")
	assert.Equal(t, "s1", status.PerStepResults["s1"].StepID)
	assert.Equal(t, 2.0, status.PerStepResults["s1"].Result["count"])
	assert.Equal(t, 100.0, status.Fields["progress"])
}

func TestRunner_EscapesExecutionID(t *testing.T) {
	var paths []string

	runner := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		paths = append(paths, r.URL.EscapedPath())

		if r.Method == http.MethodPost {
			_, _ = w.Write([]byte(`{"success": true}`))
			return
		}

		_, _ = w.Write([]byte(`{"status": "running"}`))
	})

	_, err := runner.Status(context.Background(), "a/b?c")
	require.NoError(t, err)
	require.NoError(t, runner.Stop(context.Background(), "a/b?c", "acct-1"))

	assert.Equal(t, []string{"/workflows/status/a%2Fb%3Fc", "/workflows/stop/a%2Fb%3Fc"}, paths)
}

func TestRunner_StatusAcceptsResultList(t *testing.T) {
	runner := newTestRunner(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","error":"session expired","results":[{"step_id":"s1","status":"failed"}]}`))
	})

	status, err := runner.Status(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionFailed, status.State)
	assert.Equal(t, "session expired", status.Error)
	assert.Equal(t, models.StepFailed, status.PerStepResults["s1"].Status)
}

func TestRunner_StatusRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	runner := newTestRunner(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		_, _ = w.Write([]byte(`{"status":"running"}`))
	})

	status, err := runner.Status(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionRunning, status.State)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunner_StatusNotFound(t *testing.T) {
	runner := newTestRunner(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := runner.Status(context.Background(), "exec-1")

	assert.ErrorIs(t, err, models.ErrExecutionNotFound)
}

func TestRunner_Stop(t *testing.T) {
	testCases := []struct {
		name     string
		response string
		wantErr  error
	}{
		{name: "accepted", response: `{"success":true}`},
		{name: "rejected", response: `{"success":false,"error":"already finished"}`, wantErr: ErrStopRejected},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			runner := newTestRunner(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/workflows/stop/exec-1", r.URL.Path)

				var body stopRequest
				require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
				assert.Equal(t, "acct-1", body.AccountID)

				_, _ = w.Write([]byte(tc.response))
			})

			err := runner.Stop(context.Background(), "exec-1", "acct-1")
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)

				return
			}

			assert.NoError(t, err)
		})
	}
}
