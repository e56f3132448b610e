//go:build integration

package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/socialflow/pkg/accounts"
	"github.com/dukex/socialflow/pkg/executions"
	"github.com/dukex/socialflow/pkg/executor"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/persistence/postgresql"
	"github.com/dukex/socialflow/pkg/routines"
	"github.com/dukex/socialflow/pkg/services"
	"github.com/dukex/socialflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_DB":       "test_socialflow",
				"POSTGRES_USER":     "test_user",
				"POSTGRES_PASSWORD": "test_pass",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dbURL := fmt.Sprintf("postgres://test_user:test_pass@%s:%s/test_socialflow?sslmode=disable", host, port.Port())

	cleanup := func() {
		_ = container.Terminate(ctx)
	}

	return dbURL, cleanup
}

func setupIntegrationApp(t *testing.T, dbURL string) (*fiber.App, *executions.LocalRunner) {
	store, err := postgresql.NewPersistence(context.Background(), slog.Default(), dbURL)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close(context.Background()) })

	instant := executor.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
	runner := executions.NewLocalRunner(executor.New(executor.NewDryRun(slog.Default()), slog.Default(), instant), slog.Default())

	t.Cleanup(func() { _ = runner.Close() })

	directory := accounts.NewStatic(&accounts.Account{Ref: "acct-1", UserID: testUser, Status: accounts.StatusAuthenticated})

	handlers := web.NewAPIHandlers(
		services.NewWorkflow(store, nil, slog.Default()),
		executions.NewService(runner, directory, store.ExecutionRepository(), nil, slog.Default()),
		routines.NewService(store.RoutineRepository(), store.WorkflowRepository(), nil, slog.Default()),
		validator.New(validator.WithRequiredStructEnabled()),
	)

	app := fiber.New()
	handlers.Mount(app)

	return app, runner
}

func send(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	encoded, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(method, path, bytes.NewBuffer(encoded))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(web.UserIDHeader, testUser)

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)

	return resp, buf.Bytes()
}

func TestWorkflowLifecycle_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	dbURL, cleanup := setupTestDB(t)
	defer cleanup()

	app, runner := setupIntegrationApp(t, dbURL)

	resp, body := send(t, app, http.MethodPost, "/workflows", web.CreateWorkflowRequest{Name: "Integration"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var record models.WorkflowRecord
	require.NoError(t, json.Unmarshal(body, &record))

	base := "/workflows/" + record.ID

	resp, body = send(t, app, http.MethodPost, base+"/steps", web.AddStepRequest{Name: "Like"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var step web.StepResponse
	require.NoError(t, json.Unmarshal(body, &step))

	resp, body = send(t, app, http.MethodPost, base+"/steps/"+step.StepID+"/actions", web.AddActionRequest{Type: models.ActionDelay})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = send(t, app, http.MethodPost, base+"/executions", web.SubmitExecutionRequest{AccountID: "acct-1"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode, string(body))

	var submitted web.SubmitExecutionResponse
	require.NoError(t, json.Unmarshal(body, &submitted))

	runner.Wait()

	resp, body = send(t, app, http.MethodGet, "/executions/"+submitted.ExecutionID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var status models.ExecutionStatus
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, models.ExecutionSucceeded, status.State)
	assert.Contains(t, status.PerStepResults, step.StepID)

	resp, body = send(t, app, http.MethodGet, base+"/executions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), string(models.ExecutionSucceeded))

	resp, _ = send(t, app, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = send(t, app, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
