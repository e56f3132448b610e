package executions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/socialflow/pkg/accounts"
	"github.com/dukex/socialflow/pkg/eventbus"
	"github.com/dukex/socialflow/pkg/events"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/otelhelper"
	"github.com/dukex/socialflow/pkg/persistence"
	"github.com/dukex/socialflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidSubmission indicates a submit request missing its workflow or account.
var ErrInvalidSubmission = errors.New("invalid submission")

// TrackingTTL is how long an execution's status stays tracked in memory after its last poll.
const TrackingTTL = 30 * time.Minute

// SubmitRequest hands a workflow to the runner for one account.
type SubmitRequest struct {
	UserID     string
	Workflow   *models.Workflow `validate:"required"`
	AccountRef string           `validate:"required"`
	RoutineID  string
}

// tracked is the service's merged view of one execution.
type tracked struct {
	mu            sync.Mutex
	execution     *models.Execution
	status        *models.ExecutionStatus
	stopRequested bool
}

type Service struct {
	runner     Runner
	directory  accounts.Directory
	repository persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
	tracking   *cache.Cache
	loading    sync.Mutex
	validate   *validator.Validate
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewService(
	runner Runner,
	directory accounts.Directory,
	repository persistence.ExecutionRepository,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Service {
	if publisher == nil {
		publisher = eventbus.Nop{}
	}

	return &Service{
		runner:     runner,
		directory:  directory,
		repository: repository,
		publisher:  publisher,
		tracking:   cache.New(TrackingTTL, 10*time.Minute),
		validate:   validator.New(),
		logger:     logger.With("module", "executions"),
		tracer:     otel.Tracer("socialflow/executions"),
	}
}

// Submit checks the account, freezes the workflow and hands the snapshot to the runner.
// Later edits to req.Workflow never reach the submitted run.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*models.Execution, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "executions.submit",
		attribute.String(otelhelper.AccountRefKey, req.AccountRef),
		attribute.String(otelhelper.UserIDKey, req.UserID),
	)
	defer span.End()

	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSubmission, err)
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, req.Workflow.ID))

	if err := accounts.CheckEligible(ctx, s.directory, req.UserID, req.AccountRef); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	snapshot, err := req.Workflow.Clone()
	if err != nil {
		return nil, fmt.Errorf("failed to freeze workflow: %w", err)
	}

	if _, err := workflow.Linearize(snapshot); err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	executionID, err := s.runner.Submit(ctx, snapshot, req.AccountRef)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("runner rejected submission: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.ExecutionIDKey, executionID))

	now := time.Now().UTC()
	execution := &models.Execution{
		ID:          executionID,
		WorkflowID:  snapshot.ID,
		UserID:      req.UserID,
		AccountRef:  req.AccountRef,
		RoutineID:   req.RoutineID,
		Snapshot:    snapshot,
		State:       models.ExecutionQueued,
		SubmittedAt: now,
	}

	if err := s.repository.Save(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to record execution %s: %w", executionID, err)
	}

	s.tracking.Set(executionID, &tracked{
		execution: execution,
		status:    models.NewExecutionStatus(executionID, models.ExecutionQueued),
	}, cache.DefaultExpiration)

	s.publish(ctx, executionID, events.ExecutionSubmitted{
		BaseEvent:   events.NewBaseEvent(events.ExecutionSubmittedEvent, snapshot.ID),
		ExecutionID: executionID,
		UserID:      req.UserID,
		AccountRef:  req.AccountRef,
		RoutineID:   req.RoutineID,
	})

	s.logger.InfoContext(ctx, "Execution submitted",
		"execution_id", executionID,
		"workflow_id", snapshot.ID,
		"account_ref", req.AccountRef,
	)

	return execution, nil
}

// Execution returns the stored record of an execution.
func (s *Service) Execution(ctx context.Context, executionID string) (*models.Execution, error) {
	return s.repository.GetByID(ctx, executionID)
}

// ListByWorkflow returns a workflow's executions, newest first.
func (s *Service) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	return s.repository.ListByWorkflow(ctx, workflowID)
}

// Status polls the runner and merges its answer into the tracked status.
// Step results are append-only and a terminal state is never left.
func (s *Service) Status(ctx context.Context, executionID string) (*models.ExecutionStatus, error) {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "executions.status",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
	)
	defer span.End()

	entry, err := s.track(ctx, executionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	terminal := entry.status.State.IsTerminal()
	entry.mu.Unlock()

	if terminal {
		return s.view(entry), nil
	}

	incoming, err := s.runner.Status(ctx, executionID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to poll execution %s: %w", executionID, err)
	}

	s.apply(ctx, entry, incoming)

	return s.view(entry), nil
}

// Stop asks the runner to stop. Repeated stops and stops of finished executions are no-ops.
func (s *Service) Stop(ctx context.Context, executionID, accountRef string) error {
	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "executions.stop",
		attribute.String(otelhelper.ExecutionIDKey, executionID),
	)
	defer span.End()

	entry, err := s.track(ctx, executionID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	settled := entry.status.State.IsTerminal() || entry.stopRequested
	entry.mu.Unlock()

	if settled {
		return nil
	}

	// The cached state may lag behind a run that already finished.
	incoming, err := s.runner.Status(ctx, executionID)
	if err != nil {
		s.logger.WarnContext(ctx, "Status poll before stop failed", "execution_id", executionID, "error", err)
	} else {
		s.apply(ctx, entry, incoming)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.status.State.IsTerminal() || entry.stopRequested {
		return nil
	}

	if accountRef == "" {
		accountRef = entry.execution.AccountRef
	}

	if err := s.runner.Stop(ctx, executionID, accountRef); err != nil {
		otelhelper.SetError(span, err)

		return fmt.Errorf("failed to stop execution %s: %w", executionID, err)
	}

	entry.stopRequested = true

	s.publish(ctx, executionID, events.ExecutionStopRequested{
		BaseEvent:   events.NewBaseEvent(events.ExecutionStopRequestedEvent, entry.execution.WorkflowID),
		ExecutionID: executionID,
		AccountRef:  accountRef,
	})

	s.logger.InfoContext(ctx, "Stop requested", "execution_id", executionID)

	return nil
}

// track returns the tracked entry, rebuilding it from the stored record after eviction.
func (s *Service) track(ctx context.Context, executionID string) (*tracked, error) {
	if entry, ok := s.tracking.Get(executionID); ok {
		return entry.(*tracked), nil
	}

	s.loading.Lock()
	defer s.loading.Unlock()

	if entry, ok := s.tracking.Get(executionID); ok {
		return entry.(*tracked), nil
	}

	execution, err := s.repository.GetByID(ctx, executionID)
	if err != nil {
		if persistence.IsExecutionNotFound(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrExecutionNotFound, executionID)
		}

		return nil, err
	}

	status := models.NewExecutionStatus(executionID, execution.State)
	status.Error = execution.Error

	entry := &tracked{execution: execution, status: status}
	s.tracking.Set(executionID, entry, cache.DefaultExpiration)

	return entry, nil
}

func (s *Service) view(entry *tracked) *models.ExecutionStatus {
	entry.mu.Lock()
	defer entry.mu.Unlock()

	s.tracking.Set(entry.execution.ID, entry, cache.DefaultExpiration)

	return entry.status.Clone()
}

// apply merges a runner status, then publishes what changed and persists state moves.
func (s *Service) apply(ctx context.Context, entry *tracked, incoming *models.ExecutionStatus) {
	entry.mu.Lock()

	added, finished := Merge(entry.status, incoming)
	stateChanged := entry.execution.State != entry.status.State

	if stateChanged {
		entry.execution.State = entry.status.State
		entry.execution.Error = entry.status.Error
	}

	execution := *entry.execution
	entry.mu.Unlock()

	for _, result := range added {
		s.publish(ctx, execution.ID, events.ExecutionStepFinished{
			BaseEvent:   events.NewBaseEvent(events.ExecutionStepFinishedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			Result:      result,
		})
	}

	if stateChanged {
		if err := s.repository.Save(ctx, &execution); err != nil {
			s.logger.ErrorContext(ctx, "Failed to persist execution state", "execution_id", execution.ID, "error", err)
		}
	}

	if finished {
		s.publish(ctx, execution.ID, events.ExecutionFinished{
			BaseEvent:   events.NewBaseEvent(events.ExecutionFinishedEvent, execution.WorkflowID),
			ExecutionID: execution.ID,
			State:       execution.State,
			Error:       execution.Error,
			Duration:    time.Since(execution.SubmittedAt),
		})
	}
}

// Merge folds incoming into current. Step results already present are kept,
// a terminal current state is kept, and a running state never returns to queued.
// It returns the newly added step results and whether current became terminal.
func Merge(current, incoming *models.ExecutionStatus) ([]*models.StepResult, bool) {
	if incoming == nil || current.State.IsTerminal() {
		return nil, false
	}

	added := make([]*models.StepResult, 0)

	for id, result := range incoming.PerStepResults {
		if result == nil {
			continue
		}

		if _, written := current.PerStepResults[id]; written {
			continue
		}

		copied := *result
		current.PerStepResults[id] = &copied
		added = append(added, &copied)
	}

	if incoming.Fields != nil {
		if current.Fields == nil {
			current.Fields = make(map[string]any, len(incoming.Fields))
		}

		for key, value := range incoming.Fields {
			current.Fields[key] = value
		}
	}

	state := incoming.State
	if !state.IsValid() || (state == models.ExecutionQueued && current.State == models.ExecutionRunning) {
		state = current.State
	}

	current.State = state
	current.UpdatedAt = time.Now().UTC()

	if state.IsTerminal() {
		current.Error = incoming.Error
	}

	return added, state.IsTerminal()
}

func (s *Service) publish(ctx context.Context, key string, event eventbus.Event) {
	if err := s.publisher.Publish(ctx, key, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}
