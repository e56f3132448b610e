// Package models defines the core domain models for step-based social automation workflows.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// OnErrorPolicy decides what a run does after a step fails for good.
type OnErrorPolicy string

const (
	OnErrorStop     OnErrorPolicy = "stop"     // Abort the run on the first failed step
	OnErrorContinue OnErrorPolicy = "continue" // Record the failure and keep going
)

// Default execution configuration applied to new workflows.
const (
	DefaultTimeoutMs = 300000
	DefaultOnError   = OnErrorStop
)

// Workflow is the root aggregate: ordered steps, optional explicit edges and run configuration.
type Workflow struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"                  validate:"required,min=1"`
	Description string  `json:"description"`
	Steps       []*Step `json:"steps"                 validate:"dive"`
	Edges       []*Edge `json:"edges,omitempty"       validate:"dive"`
	Config      Config  `json:"config"`
}

// Config holds the global execution settings of a workflow.
type Config struct {
	TimeoutMs int           `json:"timeoutMs" validate:"gt=0"`
	OnError   OnErrorPolicy `json:"onError"   validate:"required,oneof=stop continue"`
}

// DefaultConfig returns the configuration used when a workflow does not set one.
func DefaultConfig() Config {
	return Config{
		TimeoutMs: DefaultTimeoutMs,
		OnError:   DefaultOnError,
	}
}

// NewWorkflow returns an empty workflow with the default configuration.
func NewWorkflow(id, name string) *Workflow {
	return &Workflow{
		ID:     id,
		Name:   name,
		Steps:  make([]*Step, 0),
		Edges:  make([]*Edge, 0),
		Config: DefaultConfig(),
	}
}

// Timeout returns the run timeout as a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// StepByID returns the step with the given id, or nil.
func (w *Workflow) StepByID(id string) *Step {
	for _, step := range w.Steps {
		if step != nil && step.ID == id {
			return step
		}
	}

	return nil
}

// StepIndex returns the position of a step in stored order, or -1.
func (w *Workflow) StepIndex(id string) int {
	for i, step := range w.Steps {
		if step != nil && step.ID == id {
			return i
		}
	}

	return -1
}

// HasEdges reports whether execution order is driven by explicit edges.
func (w *Workflow) HasEdges() bool {
	return len(w.Edges) > 0
}

// OutgoingEdges returns the edges leaving a step, in stored order.
func (w *Workflow) OutgoingEdges(stepID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range w.Edges {
		if edge != nil && edge.Source == stepID {
			edges = append(edges, edge)
		}
	}

	return edges
}

// IncomingEdges returns the edges entering a step, in stored order.
func (w *Workflow) IncomingEdges(stepID string) []*Edge {
	edges := make([]*Edge, 0)

	for _, edge := range w.Edges {
		if edge != nil && edge.Target == stepID {
			edges = append(edges, edge)
		}
	}

	return edges
}

type workflowJSON Workflow

// UnmarshalJSON rejects null steps and edges.
func (w *Workflow) UnmarshalJSON(data []byte) error {
	var raw workflowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	decoded := Workflow(raw)
	if err := decoded.CheckEntries(); err != nil {
		return err
	}

	*w = decoded

	return nil
}

// CheckEntries returns ErrNullEntry when a step, edge or action slot holds nil.
func (w *Workflow) CheckEntries() error {
	for i, step := range w.Steps {
		if step == nil {
			return fmt.Errorf("%w: steps[%d]", ErrNullEntry, i)
		}

		if err := checkActions(fmt.Sprintf("steps[%d].actions", i), step.Actions); err != nil {
			return err
		}
	}

	for i, edge := range w.Edges {
		if edge == nil {
			return fmt.Errorf("%w: edges[%d]", ErrNullEntry, i)
		}
	}

	return nil
}

// Clone returns a deep copy sharing no mutable state with w.
func (w *Workflow) Clone() (*Workflow, error) {
	encoded, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}

	var clone Workflow
	if err := json.Unmarshal(encoded, &clone); err != nil {
		return nil, err
	}

	return &clone, nil
}

// WorkflowRecord is the persisted document: one per workflow, scoped to a user.
type WorkflowRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"    validate:"required"`
	Workflow  *Workflow `json:"workflow"   validate:"required"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
