package models

import "time"

// ExecutionState is the lifecycle state of a submitted run.
type ExecutionState string

const (
	ExecutionQueued    ExecutionState = "queued"
	ExecutionRunning   ExecutionState = "running"
	ExecutionSucceeded ExecutionState = "succeeded"
	ExecutionFailed    ExecutionState = "failed"
	ExecutionStopped   ExecutionState = "stopped"
)

// IsTerminal reports whether the state can no longer change.
func (s ExecutionState) IsTerminal() bool {
	return s == ExecutionSucceeded || s == ExecutionFailed || s == ExecutionStopped
}

// IsValid reports whether s is a known state.
func (s ExecutionState) IsValid() bool {
	switch s {
	case ExecutionQueued, ExecutionRunning, ExecutionSucceeded, ExecutionFailed, ExecutionStopped:
		return true
	default:
		return false
	}
}

// StepStatus is the outcome of one step in a run.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// StepResult is what a step produced. Once written for a run it is never rewritten.
type StepResult struct {
	StepID      string            `json:"step_id"`
	Status      StepStatus        `json:"status"`
	Result      map[string]any    `json:"result,omitempty"`
	Outcome     string            `json:"outcome,omitempty"`
	Error       string            `json:"error,omitempty"`
	Attempts    int               `json:"attempts"`
	Iterations  []IterationReport `json:"iterations,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

// IterationReport records one completed forEach iteration.
type IterationReport struct {
	Index   int              `json:"index"`
	Item    any              `json:"item"`
	Results []map[string]any `json:"results,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// ExecutionStatus is the polled view of a run.
type ExecutionStatus struct {
	ExecutionID    string                 `json:"execution_id"`
	State          ExecutionState         `json:"status"`
	PerStepResults map[string]*StepResult `json:"per_step_results"`
	Error          string                 `json:"error,omitempty"`
	Fields         map[string]any         `json:"fields,omitempty"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

// NewExecutionStatus returns an empty status in the given state.
func NewExecutionStatus(executionID string, state ExecutionState) *ExecutionStatus {
	return &ExecutionStatus{
		ExecutionID:    executionID,
		State:          state,
		PerStepResults: make(map[string]*StepResult),
		UpdatedAt:      time.Now().UTC(),
	}
}

// Clone copies the status so callers cannot mutate tracked state.
func (s *ExecutionStatus) Clone() *ExecutionStatus {
	clone := *s
	clone.PerStepResults = make(map[string]*StepResult, len(s.PerStepResults))

	for id, result := range s.PerStepResults {
		copied := *result
		clone.PerStepResults[id] = &copied
	}

	if s.Fields != nil {
		clone.Fields = make(map[string]any, len(s.Fields))
		for k, v := range s.Fields {
			clone.Fields[k] = v
		}
	}

	return &clone
}

// Execution is the record kept for every submitted run.
type Execution struct {
	ID          string         `json:"id"           validate:"required"`
	WorkflowID  string         `json:"workflow_id"`
	UserID      string         `json:"user_id"`
	AccountRef  string         `json:"account_id"   validate:"required"`
	RoutineID   string         `json:"routine_id,omitempty"`
	Snapshot    *Workflow      `json:"snapshot"     validate:"required"`
	State       ExecutionState `json:"status"`
	Error       string         `json:"error,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
