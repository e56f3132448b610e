package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// BranchLabel marks which outcome of a conditional step an edge follows.
type BranchLabel string

const (
	BranchNone    BranchLabel = ""
	BranchOnTrue  BranchLabel = "onTrue"
	BranchOnFalse BranchLabel = "onFalse"
)

// IsValid reports whether the label is one of the known values.
func (b BranchLabel) IsValid() bool {
	return b == BranchNone || b == BranchOnTrue || b == BranchOnFalse
}

// Edge expresses explicit control flow between two steps.
type Edge struct {
	Source string      `json:"sourceStepId"          validate:"required"`
	Target string      `json:"targetStepId"          validate:"required"`
	Branch BranchLabel `json:"branchLabel,omitempty"`
}

// ConditionType gates a step on the outcome of an earlier one.
type ConditionType string

const (
	ConditionSuccess ConditionType = "success"
	ConditionFailure ConditionType = "failure"
	ConditionAlways  ConditionType = "always"
)

// Step is a named, ordered group of actions; the unit of retry and gating.
type Step struct {
	ID        string         `json:"id"                  validate:"required"`
	Name      string         `json:"name"`
	Actions   []*Action      `json:"actions"`
	Retry     *Retry         `json:"retry,omitempty"`
	Condition *StepCondition `json:"condition,omitempty"`
	Position  *Position      `json:"position,omitempty"`
}

// Retry governs re-execution of a whole step on failure.
type Retry struct {
	MaxAttempts int `json:"maxAttempts" validate:"gte=1"`
	DelayMs     int `json:"delayMs"     validate:"gte=0"`
}

// Delay returns the wait between attempts.
func (r *Retry) Delay() time.Duration {
	return time.Duration(r.DelayMs) * time.Millisecond
}

// StepCondition decides whether the owning step runs, based on a prior step's outcome.
type StepCondition struct {
	Type         ConditionType `json:"type"         validate:"required,oneof=success failure always"`
	PreviousStep string        `json:"previousStep" validate:"required"`
}

// Position is editor canvas metadata. Execution never reads it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LastAction returns the final action of the step, or nil when it has none.
func (s *Step) LastAction() *Action {
	if len(s.Actions) == 0 {
		return nil
	}

	return s.Actions[len(s.Actions)-1]
}

// EndsWithIf reports whether the step's last action is a conditional.
func (s *Step) EndsWithIf() bool {
	last := s.LastAction()

	return last != nil && last.Type == ActionIf
}

type stepJSON Step

// UnmarshalJSON rejects null entries in the action list.
func (s *Step) UnmarshalJSON(data []byte) error {
	var raw stepJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if err := checkActions("actions", raw.Actions); err != nil {
		return fmt.Errorf("step %s: %w", raw.ID, err)
	}

	*s = Step(raw)

	return nil
}

// checkActions reports the first null action, looking into forEach bodies.
func checkActions(path string, actions []*Action) error {
	for i, action := range actions {
		if action == nil {
			return fmt.Errorf("%w: %s[%d]", ErrNullEntry, path, i)
		}

		if params, ok := action.Params.(*ForEachParams); ok && params != nil {
			if err := checkActions(fmt.Sprintf("%s[%d].params.actions", path, i), params.Actions); err != nil {
				return err
			}
		}
	}

	return nil
}
