// Package events defines execution and routine lifecycle notifications.
package events

import (
	"time"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every lifecycle event.
const Topic = "socialflow.executions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionSubmittedEvent     EventType = "execution.submitted"
	ExecutionStepFinishedEvent  EventType = "execution.step_finished"
	ExecutionFinishedEvent      EventType = "execution.finished"
	ExecutionStopRequestedEvent EventType = "execution.stop_requested"
	RoutineTriggeredEvent       EventType = "routine.triggered"
	RoutineFailedEvent          EventType = "routine.failed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// ExecutionSubmitted is published once a snapshot has been handed to a runner.
type ExecutionSubmitted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	UserID      string `json:"user_id"`
	AccountRef  string `json:"account_id"`
	RoutineID   string `json:"routine_id,omitempty"`
}

func (e ExecutionSubmitted) GetType() EventType {
	return ExecutionSubmittedEvent
}

// ExecutionStepFinished is published the first time a step result is observed.
type ExecutionStepFinished struct {
	BaseEvent

	ExecutionID string             `json:"execution_id"`
	Result      *models.StepResult `json:"result"`
}

func (e ExecutionStepFinished) GetType() EventType {
	return ExecutionStepFinishedEvent
}

// ExecutionFinished is published when an execution reaches a terminal state.
type ExecutionFinished struct {
	BaseEvent

	ExecutionID string                `json:"execution_id"`
	State       models.ExecutionState `json:"status"`
	Error       string                `json:"error,omitempty"`
	Duration    time.Duration         `json:"duration"`
}

func (e ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}

// ExecutionStopRequested is published when a stop reaches a non-terminal execution.
type ExecutionStopRequested struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	AccountRef  string `json:"account_id"`
}

func (e ExecutionStopRequested) GetType() EventType {
	return ExecutionStopRequestedEvent
}

// RoutineTriggered is published when a routine submits its workflow.
type RoutineTriggered struct {
	BaseEvent

	RoutineID   string    `json:"routine_id"`
	ExecutionID string    `json:"execution_id"`
	NextDueAt   time.Time `json:"next_due_at"`
}

func (e RoutineTriggered) GetType() EventType {
	return RoutineTriggeredEvent
}

// RoutineFailed is published when a due routine could not submit.
type RoutineFailed struct {
	BaseEvent

	RoutineID string `json:"routine_id"`
	Error     string `json:"error"`
}

func (e RoutineFailed) GetType() EventType {
	return RoutineFailedEvent
}
