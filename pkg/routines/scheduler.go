// Package routines submits stored workflows for an account on cron schedules.
package routines

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/socialflow/pkg/eventbus"
	"github.com/dukex/socialflow/pkg/events"
	"github.com/dukex/socialflow/pkg/executions"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/persistence"
	"github.com/robfig/cron/v3"
)

const stopTimeout = 30 * time.Second

// Submitter hands a workflow to the execution boundary.
type Submitter interface {
	Submit(ctx context.Context, req executions.SubmitRequest) (*models.Execution, error)
}

// Scheduler keeps one cron entry per active routine.
type Scheduler struct {
	submitter Submitter
	workflows persistence.WorkflowRepository
	routines  persistence.RoutineRepository
	publisher eventbus.EventPublisher
	logger    *slog.Logger
	cron      *cron.Cron
	entries   map[string]cron.EntryID
	mutex     sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewScheduler(
	submitter Submitter,
	workflows persistence.WorkflowRepository,
	routines persistence.RoutineRepository,
	publisher eventbus.EventPublisher,
	logger *slog.Logger,
) *Scheduler {
	if publisher == nil {
		publisher = eventbus.Nop{}
	}

	logger = logger.With("module", "routine_scheduler")
	cronLogger := &slogCronLogger{logger: logger}

	return &Scheduler{
		submitter: submitter,
		workflows: workflows,
		routines:  routines,
		publisher: publisher,
		logger:    logger,
		cron: cron.New(
			cron.WithParser(models.CronParser),
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger), cron.Recover(cronLogger)),
		),
		entries: make(map[string]cron.EntryID),
	}
}

// Start schedules every active routine and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	active, err := s.routines.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to load routines: %w", err)
	}

	for _, routine := range active {
		if err := s.Schedule(routine); err != nil {
			s.logger.ErrorContext(ctx, "Failed to schedule routine", "routine_id", routine.ID, "error", err)
		}
	}

	s.cron.Start()
	s.logger.InfoContext(ctx, "Routine scheduler started", "routines", len(active))

	return nil
}

// Stop halts the cron loop and waits for in-flight submissions.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}

	select {
	case <-s.cron.Stop().Done():
	case <-time.After(stopTimeout):
		s.logger.Warn("Timed out waiting for routine submissions")
	}
}

// Schedule adds or replaces the cron entry of a routine. Inactive routines are unscheduled.
func (s *Scheduler) Schedule(routine *models.Routine) error {
	s.Unschedule(routine.ID)

	if !routine.Active {
		return nil
	}

	routineID := routine.ID

	entryID, err := s.cron.AddFunc(routine.CronExpression, func() {
		if _, err := s.Trigger(s.context(), routineID); err != nil {
			s.logger.Error("Routine run failed", "routine_id", routineID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule routine %s: %w", routineID, err)
	}

	s.mutex.Lock()
	s.entries[routineID] = entryID
	s.mutex.Unlock()

	s.logger.Info("Routine scheduled", "routine_id", routineID, "cron", routine.CronExpression)

	return nil
}

// Unschedule removes a routine's cron entry. Unknown ids are ignored.
func (s *Scheduler) Unschedule(routineID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if entryID, ok := s.entries[routineID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, routineID)
	}
}

// Scheduled reports whether a routine has a cron entry.
func (s *Scheduler) Scheduled(routineID string) bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, ok := s.entries[routineID]

	return ok
}

// Trigger submits the routine's workflow now and records the run.
func (s *Scheduler) Trigger(ctx context.Context, routineID string) (*models.Execution, error) {
	routine, err := s.routines.GetByID(ctx, routineID)
	if err != nil {
		return nil, err
	}

	execution, err := s.submit(ctx, routine)
	if err != nil {
		s.publish(ctx, routine, events.RoutineFailed{
			BaseEvent: events.NewBaseEvent(events.RoutineFailedEvent, routine.WorkflowID),
			RoutineID: routine.ID,
			Error:     err.Error(),
		})

		return nil, err
	}

	if err := routine.MarkRun(time.Now().UTC(), execution.ID); err != nil {
		return execution, fmt.Errorf("failed to advance routine %s: %w", routine.ID, err)
	}

	if err := s.routines.Save(ctx, routine); err != nil {
		return execution, fmt.Errorf("failed to record routine run %s: %w", routine.ID, err)
	}

	s.publish(ctx, routine, events.RoutineTriggered{
		BaseEvent:   events.NewBaseEvent(events.RoutineTriggeredEvent, routine.WorkflowID),
		RoutineID:   routine.ID,
		ExecutionID: execution.ID,
		NextDueAt:   routine.NextDueAt,
	})

	s.logger.InfoContext(ctx, "Routine submitted workflow",
		"routine_id", routine.ID,
		"execution_id", execution.ID,
		"next_due_at", routine.NextDueAt,
	)

	return execution, nil
}

func (s *Scheduler) submit(ctx context.Context, routine *models.Routine) (*models.Execution, error) {
	record, err := s.workflows.GetByID(ctx, routine.WorkflowID)
	if err != nil {
		return nil, err
	}

	if record.UserID != routine.UserID {
		return nil, errors.Join(persistence.ErrWorkflowNotFound, fmt.Errorf("workflow %s belongs to another user", routine.WorkflowID))
	}

	return s.submitter.Submit(ctx, executions.SubmitRequest{
		UserID:     routine.UserID,
		Workflow:   record.Workflow,
		AccountRef: routine.AccountRef,
		RoutineID:  routine.ID,
	})
}

func (s *Scheduler) publish(ctx context.Context, routine *models.Routine, event eventbus.Event) {
	if err := s.publisher.Publish(ctx, routine.ID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish routine event", "routine_id", routine.ID, "error", err)
	}
}

func (s *Scheduler) context() context.Context {
	if s.ctx == nil {
		return context.Background()
	}

	return s.ctx
}

// slogCronLogger adapts slog to cron.Logger.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l *slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
