// Package remote talks to an automation runner over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dukex/socialflow/pkg/executions"
	"github.com/dukex/socialflow/pkg/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultAttempts = 3
)

var (
	ErrRunnerUnavailable = errors.New("runner unavailable")
	ErrUnexpectedStatus  = errors.New("unexpected runner response")
	ErrStopRejected      = errors.New("runner rejected stop")
)

// Runner is an executions.Runner backed by a remote automation service.
type Runner struct {
	baseURL    string
	client     *http.Client
	attempts   int
	retryDelay time.Duration
	logger     *slog.Logger
}

type Option func(*Runner)

func WithHTTPClient(client *http.Client) Option {
	return func(r *Runner) { r.client = client }
}

// WithRetry sets how many times status and stop calls are attempted on 5xx responses.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(r *Runner) {
		r.attempts = max(attempts, 1)
		r.retryDelay = delay
	}
}

func NewRunner(baseURL string, logger *slog.Logger, opts ...Option) *Runner {
	runner := &Runner{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   defaultTimeout,
		},
		attempts:   defaultAttempts,
		retryDelay: 500 * time.Millisecond,
		logger:     logger.With("module", "remote_runner"),
	}

	for _, opt := range opts {
		opt(runner)
	}

	return runner
}

type submitResponse struct {
	ExecutionID string `json:"execution_id"`
	Status      string `json:"status"`
}

type stopRequest struct {
	AccountID string `json:"account_id"`
}

type stopResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Submit posts the snapshot. Submission is never retried so a run is not started twice.
func (r *Runner) Submit(ctx context.Context, snapshot *models.Workflow, accountRef string) (string, error) {
	encoded, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to encode workflow: %w", err)
	}

	body := make(map[string]any)
	if err := json.Unmarshal(encoded, &body); err != nil {
		return "", fmt.Errorf("failed to encode workflow: %w", err)
	}

	body["instanceName"] = accountRef

	var response submitResponse
	if err := r.call(ctx, http.MethodPost, "/workflows/execute", body, 1, &response); err != nil {
		return "", err
	}

	if response.ExecutionID == "" {
		return "", fmt.Errorf("%w: missing execution_id", ErrUnexpectedStatus)
	}

	r.logger.InfoContext(ctx, "Workflow submitted to runner",
		"execution_id", response.ExecutionID,
		"status", response.Status,
	)

	return response.ExecutionID, nil
}

// Status fetches and normalizes the runner's status document.
func (r *Runner) Status(ctx context.Context, executionID string) (*models.ExecutionStatus, error) {
	var document map[string]any
	if err := r.call(ctx, http.MethodGet, "/workflows/status/"+url.PathEscape(executionID), nil, r.attempts, &document); err != nil {
		return nil, err
	}

	return decodeStatus(executionID, document), nil
}

func (r *Runner) Stop(ctx context.Context, executionID, accountRef string) error {
	var response stopResponse
	if err := r.call(ctx, http.MethodPost, "/workflows/stop/"+url.PathEscape(executionID), stopRequest{AccountID: accountRef}, r.attempts, &response); err != nil {
		return err
	}

	if !response.Success {
		return fmt.Errorf("%w: %s", ErrStopRejected, response.Error)
	}

	return nil
}

func (r *Runner) call(ctx context.Context, method, path string, payload any, attempts int, out any) error {
	var body []byte

	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}

		body = encoded
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			r.logger.InfoContext(ctx, "Retrying runner request", "path", path, "attempt", attempt)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}

		retry, err := r.do(ctx, method, path, body, out)
		if err == nil {
			return nil
		}

		lastErr = err
		if !retry {
			return err
		}
	}

	return lastErr
}

// do performs one request and reports whether a failure may be retried.
func (r *Runner) do(ctx context.Context, method, path string, body []byte, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return true, fmt.Errorf("%w: %w", ErrRunnerUnavailable, err)
	}

	defer func() {
		if err := resp.Body.Close(); err != nil {
			r.logger.WarnContext(ctx, "Failed to close runner response body", "error", err)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read runner response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, fmt.Errorf("%w: %s", models.ErrExecutionNotFound, path)
	case resp.StatusCode >= http.StatusInternalServerError:
		return true, fmt.Errorf("%w: %d", ErrRunnerUnavailable, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return false, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	if out == nil || len(raw) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("%w: %w", ErrUnexpectedStatus, err)
	}

	return false, nil
}

// decodeStatus keeps status, error and step results as typed fields. Everything else lands in Fields.
func decodeStatus(executionID string, document map[string]any) *models.ExecutionStatus {
	state, _ := document["status"].(string)
	status := models.NewExecutionStatus(executionID, executions.NormalizeState(state))
	status.Fields = make(map[string]any)

	for key, value := range document {
		switch key {
		case "status", "execution_id":
		case "error":
			if message, ok := value.(string); ok {
				status.Error = message
			}
		case "per_step_results", "results":
			for id, result := range decodeStepResults(value) {
				status.PerStepResults[id] = result
			}
		default:
			status.Fields[key] = value
		}
	}

	return status
}

func decodeStepResults(value any) map[string]*models.StepResult {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil
	}

	results := make(map[string]*models.StepResult)
	if err := json.Unmarshal(encoded, &results); err == nil {
		for id, result := range results {
			if result != nil && result.StepID == "" {
				result.StepID = id
			}
		}

		return results
	}

	var list []*models.StepResult
	if err := json.Unmarshal(encoded, &list); err != nil {
		return nil
	}

	for _, result := range list {
		if result != nil && result.StepID != "" {
			results[result.StepID] = result
		}
	}

	return results
}
