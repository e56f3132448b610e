// Package executor interprets a frozen workflow snapshot step by step.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"github.com/dukex/socialflow/pkg/conditions"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/otelhelper"
	"github.com/dukex/socialflow/pkg/variables"
	"github.com/dukex/socialflow/pkg/workflow"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrStopped indicates the run was stopped before finishing.
	ErrStopped = errors.New("execution stopped")

	// ErrTimeout indicates the run exceeded the workflow's timeout.
	ErrTimeout = errors.New("execution timed out")

	// ErrNotAList indicates a forEach list that did not resolve to a list.
	ErrNotAList = errors.New("forEach list is not a list")
)

// Performer carries out actions against the social network for an account.
type Performer interface {
	Perform(ctx context.Context, accountRef string, action variables.ResolvedAction) (map[string]any, error)
}

// PerformerFunc adapts a function to Performer.
type PerformerFunc func(ctx context.Context, accountRef string, action variables.ResolvedAction) (map[string]any, error)

func (f PerformerFunc) Perform(ctx context.Context, accountRef string, action variables.ResolvedAction) (map[string]any, error) {
	return f(ctx, accountRef, action)
}

// Reporter receives progress while a run executes.
type Reporter interface {
	StepStarted(stepID string)
	StepFinished(result *models.StepResult)
	IterationFinished(stepID string, report models.IterationReport)
}

// NopReporter ignores progress.
type NopReporter struct{}

func (NopReporter) StepStarted(string) {}
func (NopReporter) StepFinished(*models.StepResult) {}
func (NopReporter) IterationFinished(string, models.IterationReport) {}

// Control lets the owner of a run request a cooperative stop.
type Control struct {
	stopped atomic.Bool
}

// Stop asks the run to stop at the next step boundary. Work in flight finishes.
func (c *Control) Stop() {
	c.stopped.Store(true)
}

// Stopped reports whether a stop was requested.
func (c *Control) Stopped() bool {
	return c != nil && c.stopped.Load()
}

// Result is the final view of a run.
type Result struct {
	State models.ExecutionState
	Error string
	Steps map[string]*models.StepResult
}

// DefaultPolicy fails an action on any unresolved reference, except the
// variable of an if, which resolves to empty so isEmpty can test skipped steps.
func DefaultPolicy() variables.Policy {
	return variables.Policy{
		Default: variables.FailOnMissing,
		Fields: variables.FieldPolicy{
			models.ActionIf: {"variable": variables.EmptyOnMissing},
		},
	}
}

// Executor runs workflows.
type Executor struct {
	performer Performer
	policy    variables.Policy
	logger    *slog.Logger
	tracer    trace.Tracer
	sleep     func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithPolicy sets the unresolved-variable policy.
func WithPolicy(policy variables.Policy) Option {
	return func(e *Executor) { e.policy = policy }
}

// WithTracer sets the tracer used for run and step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Executor) { e.tracer = tracer }
}

// WithSleep replaces the wait used by delay actions and retries.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// New returns an executor dispatching non-native actions to performer.
func New(performer Performer, logger *slog.Logger, opts ...Option) *Executor {
	e := &Executor{
		performer: performer,
		policy:    DefaultPolicy(),
		logger:    logger.With("module", "executor"),
		tracer:    otel.Tracer("socialflow/executor"),
		sleep:     sleepContext,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// run is the mutable state of one execution.
type run struct {
	executionID string
	workflow    *models.Workflow
	accountRef  string
	control     *Control
	reporter    Reporter
	logger      *slog.Logger
	results     map[string]*models.StepResult
	namespace   variables.Namespace
}

// Run executes the snapshot to completion, failure, timeout or stop.
func (e *Executor) Run(
	ctx context.Context,
	executionID string,
	snapshot *models.Workflow,
	accountRef string,
	control *Control,
	reporter Reporter,
) *Result {
	if reporter == nil {
		reporter = NopReporter{}
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "executor.run",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
		attribute.String(otelhelper.WorkflowIDKey, snapshot.ID),
	)
	defer span.End()

	r := &run{
		executionID: executionID,
		workflow:    snapshot,
		accountRef:  accountRef,
		control:     control,
		reporter:    reporter,
		logger:      e.logger.With("execution_id", executionID, "workflow_id", snapshot.ID),
		results:     make(map[string]*models.StepResult),
		namespace:   variables.Namespace{Steps: make(map[string]any)},
	}

	result := e.run(ctx, r)
	if result.Error != "" {
		otelhelper.SetError(span, errors.New(result.Error))
	}

	r.logger.InfoContext(ctx, "Execution finished", "state", result.State)

	return result
}

func (e *Executor) run(ctx context.Context, r *run) *Result {
	order, err := workflow.Linearize(r.workflow)
	if err != nil {
		return r.finish(models.ExecutionFailed, err)
	}

	timeout := r.workflow.Config.Timeout()
	if timeout <= 0 {
		timeout = models.DefaultConfig().Timeout()
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var firstFailure error

	for _, stepID := range order {
		if r.control.Stopped() {
			return r.finish(models.ExecutionStopped, ErrStopped)
		}

		if ctx.Err() != nil {
			return r.finish(models.ExecutionFailed, ErrTimeout)
		}

		step := r.workflow.StepByID(stepID)

		if reason, skip := r.shouldSkip(step); skip {
			r.record(&models.StepResult{
				StepID:      step.ID,
				Status:      models.StepSkipped,
				Error:       reason,
				StartedAt:   time.Now().UTC(),
				CompletedAt: time.Now().UTC(),
			})

			continue
		}

		r.reporter.StepStarted(step.ID)

		result := e.runStep(ctx, r, step)
		r.record(result)

		if result.Status != models.StepFailed {
			continue
		}

		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return r.finish(models.ExecutionFailed, ErrTimeout)
		}

		if r.control.Stopped() {
			return r.finish(models.ExecutionStopped, ErrStopped)
		}

		stepErr := fmt.Errorf("step %s failed: %s", step.ID, result.Error)
		if r.workflow.Config.OnError != models.OnErrorContinue {
			return r.finish(models.ExecutionFailed, stepErr)
		}

		if firstFailure == nil {
			firstFailure = stepErr
		}
	}

	if firstFailure != nil {
		return r.finish(models.ExecutionFailed, firstFailure)
	}

	return r.finish(models.ExecutionSucceeded, nil)
}

func (r *run) finish(state models.ExecutionState, err error) *Result {
	result := &Result{
		State: state,
		Steps: maps.Clone(r.results),
	}

	if err != nil {
		result.Error = err.Error()
	}

	return result
}

// record stores a step result once and exposes successful results to later references.
func (r *run) record(result *models.StepResult) {
	if _, written := r.results[result.StepID]; written {
		return
	}

	r.results[result.StepID] = result

	if result.Status == models.StepSucceeded {
		r.namespace.Steps[result.StepID] = map[string]any{"result": result.Result}
	}

	r.reporter.StepFinished(result)
}

// shouldSkip applies branch pruning and the step's condition.
func (r *run) shouldSkip(step *models.Step) (string, bool) {
	if r.workflow.HasEdges() && !r.activated(step) {
		return "not on a taken branch", true
	}

	if step.Condition == nil {
		return "", false
	}

	previous := r.results[step.Condition.PreviousStep]

	switch step.Condition.Type {
	case models.ConditionSuccess:
		if previous == nil || previous.Status != models.StepSucceeded {
			return fmt.Sprintf("step %s did not succeed", step.Condition.PreviousStep), true
		}
	case models.ConditionFailure:
		if previous == nil || previous.Status != models.StepFailed {
			return fmt.Sprintf("step %s did not fail", step.Condition.PreviousStep), true
		}
	case models.ConditionAlways:
	}

	return "", false
}

// activated is true for steps without incoming edges, and for steps with an
// incoming edge from a step that ran whose label, if any, matches its outcome.
func (r *run) activated(step *models.Step) bool {
	incoming := r.workflow.IncomingEdges(step.ID)
	known := 0

	for _, edge := range incoming {
		if r.workflow.StepByID(edge.Source) == nil {
			continue
		}

		known++

		source := r.results[edge.Source]
		if source == nil || source.Status == models.StepSkipped {
			continue
		}

		switch edge.Branch {
		case models.BranchNone:
			return true
		case models.BranchOnTrue:
			if source.Outcome == conditions.True.String() {
				return true
			}
		case models.BranchOnFalse:
			if source.Outcome == conditions.False.String() {
				return true
			}
		}
	}

	return known == 0
}
