package routines

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var (
	ErrInvalidRoutine  = errors.New("invalid routine")
	ErrRoutineNotFound = persistence.ErrRoutineNotFound
)

// CreateRequest schedules a stored workflow for one account.
type CreateRequest struct {
	UserID         string `validate:"required"`
	WorkflowID     string `validate:"required"`
	AccountRef     string `validate:"required"`
	CronExpression string `validate:"required"`
}

// Service manages routines and keeps the scheduler in sync with them.
type Service struct {
	routines  persistence.RoutineRepository
	workflows persistence.WorkflowRepository
	scheduler *Scheduler
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewService creates a routine service. A nil scheduler stores routines without scheduling them.
func NewService(
	routines persistence.RoutineRepository,
	workflows persistence.WorkflowRepository,
	scheduler *Scheduler,
	logger *slog.Logger,
) *Service {
	return &Service{
		routines:  routines,
		workflows: workflows,
		scheduler: scheduler,
		validate:  validator.New(),
		logger:    logger.With("module", "routine_service"),
	}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Routine, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRoutine, err)
	}

	record, err := s.workflows.GetByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	if record.UserID != req.UserID {
		return nil, persistence.NewWorkflowError("Create", req.WorkflowID, persistence.ErrWorkflowNotFound)
	}

	routine, err := models.NewRoutine(uuid.New().String(), req.UserID, req.WorkflowID, req.AccountRef, req.CronExpression)
	if err != nil {
		return nil, fmt.Errorf("%w: cron expression %q: %w", ErrInvalidRoutine, req.CronExpression, err)
	}

	if err := s.routines.Save(ctx, routine); err != nil {
		return nil, fmt.Errorf("failed to save routine: %w", err)
	}

	if s.scheduler != nil {
		if err := s.scheduler.Schedule(routine); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "Routine created",
		"routine_id", routine.ID,
		"workflow_id", routine.WorkflowID,
		"next_due_at", routine.NextDueAt,
	)

	return routine, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]*models.Routine, error) {
	return s.routines.ListByUser(ctx, userID)
}

// Get returns a routine owned by userID. Routines of other users are reported as missing.
func (s *Service) Get(ctx context.Context, userID, id string) (*models.Routine, error) {
	routine, err := s.routines.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if routine.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrRoutineNotFound, id)
	}

	return routine, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}

	if s.scheduler != nil {
		s.scheduler.Unschedule(id)
	}

	if err := s.routines.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete routine: %w", err)
	}

	s.logger.InfoContext(ctx, "Routine deleted", "routine_id", id)

	return nil
}
