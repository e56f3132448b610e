package executions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/socialflow/pkg/executor"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// FinishedRetention is how long a finished run stays queryable on a LocalRunner.
const FinishedRetention = time.Hour

// LocalRunner runs snapshots in-process, one goroutine per execution.
// Running executions are kept until they finish; finished ones expire after the retention.
type LocalRunner struct {
	executor  *executor.Executor
	logger    *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	runs      *cache.Cache
	retention time.Duration
}

type LocalRunnerOption func(*LocalRunner)

// WithRetention overrides how long finished runs are kept.
func WithRetention(retention time.Duration) LocalRunnerOption {
	return func(r *LocalRunner) { r.retention = retention }
}

func NewLocalRunner(exec *executor.Executor, logger *slog.Logger, opts ...LocalRunnerOption) *LocalRunner {
	ctx, cancel := context.WithCancel(context.Background())

	runner := &LocalRunner{
		executor:  exec,
		logger:    logger.With("module", "local_runner"),
		ctx:       ctx,
		cancel:    cancel,
		retention: FinishedRetention,
	}

	for _, opt := range opts {
		opt(runner)
	}

	runner.runs = cache.New(cache.NoExpiration, min(runner.retention, 10*time.Minute))

	return runner
}

// localRun is the status board of one execution. Step results are written once.
type localRun struct {
	mu      sync.Mutex
	status  *models.ExecutionStatus
	control *executor.Control
}

func (l *localRun) StepStarted(stepID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.status.State = models.ExecutionRunning
	l.status.Fields["current_step"] = stepID
	l.status.UpdatedAt = time.Now().UTC()
}

func (l *localRun) StepFinished(result *models.StepResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, written := l.status.PerStepResults[result.StepID]; written {
		return
	}

	copied := *result
	l.status.PerStepResults[result.StepID] = &copied
	l.status.UpdatedAt = time.Now().UTC()
}

func (l *localRun) IterationFinished(stepID string, report models.IterationReport) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.status.Fields["iterations."+stepID] = report.Index + 1
	l.status.UpdatedAt = time.Now().UTC()
}

func (l *localRun) finish(result *executor.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, step := range result.Steps {
		if _, written := l.status.PerStepResults[id]; !written {
			copied := *step
			l.status.PerStepResults[id] = &copied
		}
	}

	delete(l.status.Fields, "current_step")
	l.status.State = result.State
	l.status.Error = result.Error
	l.status.UpdatedAt = time.Now().UTC()
}

func (l *localRun) snapshot() *models.ExecutionStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.status.Clone()
}

func (r *LocalRunner) Submit(_ context.Context, snapshot *models.Workflow, accountRef string) (string, error) {
	executionID := uuid.NewString()

	status := models.NewExecutionStatus(executionID, models.ExecutionQueued)
	status.Fields = make(map[string]any)

	run := &localRun{status: status, control: &executor.Control{}}

	r.runs.Set(executionID, run, cache.NoExpiration)

	r.wg.Add(1)

	go func() {
		defer r.wg.Done()

		result := r.execute(executionID, snapshot, accountRef, run)
		run.finish(result)
		r.runs.Set(executionID, run, r.retention)

		r.logger.Info("Execution finished", "execution_id", executionID, "state", result.State)
	}()

	return executionID, nil
}

// execute runs one snapshot, turning a panic into a failed result.
func (r *LocalRunner) execute(executionID string, snapshot *models.Workflow, accountRef string, run *localRun) (result *executor.Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.logger.Error("Execution panicked", "execution_id", executionID, "panic", recovered)

			result = &executor.Result{
				State: models.ExecutionFailed,
				Error: fmt.Sprintf("execution panicked: %v", recovered),
				Steps: make(map[string]*models.StepResult),
			}
		}
	}()

	return r.executor.Run(r.ctx, executionID, snapshot, accountRef, run.control, run)
}

func (r *LocalRunner) Status(_ context.Context, executionID string) (*models.ExecutionStatus, error) {
	run, err := r.lookup(executionID)
	if err != nil {
		return nil, err
	}

	return run.snapshot(), nil
}

// Stop requests a cooperative stop. The account is not consulted in-process.
func (r *LocalRunner) Stop(_ context.Context, executionID, _ string) error {
	run, err := r.lookup(executionID)
	if err != nil {
		return err
	}

	run.control.Stop()

	return nil
}

func (r *LocalRunner) lookup(executionID string) (*localRun, error) {
	cached, ok := r.runs.Get(executionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrExecutionNotFound, executionID)
	}

	return cached.(*localRun), nil
}

// Wait blocks until every submitted execution has finished.
func (r *LocalRunner) Wait() {
	r.wg.Wait()
}

// Close cancels running executions and waits for them.
func (r *LocalRunner) Close() error {
	r.cancel()
	r.wg.Wait()

	return nil
}
