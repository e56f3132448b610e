package models

import (
	"time"

	"github.com/robfig/cron/v3"
)

// Routine submits a stored workflow for an account on a cron schedule.
type Routine struct {
	// ID uniquely identifies the routine
	ID string `json:"id"`

	UserID     string `json:"user_id"     validate:"required"`
	WorkflowID string `json:"workflow_id" validate:"required"`
	AccountRef string `json:"account_id"  validate:"required"`

	// CronExpression uses the standard 5-field format (minute hour day month weekday)
	CronExpression string `json:"cron_expression" validate:"required"`

	// NextDueAt is the precomputed next submission time
	NextDueAt time.Time `json:"next_due_at"`

	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	LastExecutionID string     `json:"last_execution_id,omitempty"`

	// Inactive routines are loaded but never scheduled
	Active bool `json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CronParser parses the 5-field expressions routines accept.
var CronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewRoutine creates an active routine with its first due time computed.
func NewRoutine(id, userID, workflowID, accountRef, cronExpression string) (*Routine, error) {
	now := time.Now().UTC()
	routine := &Routine{
		ID:             id,
		UserID:         userID,
		WorkflowID:     workflowID,
		AccountRef:     accountRef,
		CronExpression: cronExpression,
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := routine.calculateNextDueAt(now); err != nil {
		return nil, err
	}

	return routine, nil
}

// MarkRun records a submission and moves NextDueAt forward.
func (r *Routine) MarkRun(at time.Time, executionID string) error {
	r.LastRunAt = &at
	r.LastExecutionID = executionID

	return r.calculateNextDueAt(at)
}

func (r *Routine) calculateNextDueAt(reference time.Time) error {
	schedule, err := CronParser.Parse(r.CronExpression)
	if err != nil {
		return err
	}

	r.NextDueAt = schedule.Next(reference)
	r.UpdatedAt = time.Now().UTC()

	return nil
}
