// Package workflow owns the step/action tree of a workflow: editing, linearization and validation.
package workflow

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dukex/socialflow/pkg/catalog"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/google/uuid"
)

const stepIDPrefix = "step-"

// Graph edits a workflow in place. It is not safe for concurrent use.
type Graph struct {
	workflow *models.Workflow
	catalog  *catalog.Catalog
	issued   map[string]struct{}
}

// New wraps a workflow. A nil catalog means the built-in one.
func New(workflow *models.Workflow, actions *catalog.Catalog) *Graph {
	if actions == nil {
		actions = catalog.Default
	}

	if workflow.Steps == nil {
		workflow.Steps = make([]*models.Step, 0)
	}

	issued := make(map[string]struct{}, len(workflow.Steps))
	for _, step := range workflow.Steps {
		if step != nil {
			issued[step.ID] = struct{}{}
		}
	}

	return &Graph{
		workflow: workflow,
		catalog:  actions,
		issued:   issued,
	}
}

// Workflow returns the wrapped workflow.
func (g *Graph) Workflow() *models.Workflow {
	return g.workflow
}

func (g *Graph) nextStepID() string {
	for {
		id := stepIDPrefix + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
		if _, used := g.issued[id]; !used {
			g.issued[id] = struct{}{}
			return id
		}
	}
}

// AddStep appends an empty step and returns its id.
// Ids are never reused within the graph, not even after removal.
func (g *Graph) AddStep(name string) string {
	id := g.nextStepID()

	g.workflow.Steps = append(g.workflow.Steps, &models.Step{
		ID:      id,
		Name:    name,
		Actions: make([]*models.Action, 0),
	})

	return id
}

// RemoveStep deletes a step, every edge touching it and every condition gated on it.
// Unknown ids are ignored.
func (g *Graph) RemoveStep(stepID string) {
	index := g.workflow.StepIndex(stepID)
	if index < 0 {
		return
	}

	g.workflow.Steps = slices.Delete(g.workflow.Steps, index, index+1)

	g.workflow.Edges = slices.DeleteFunc(g.workflow.Edges, func(edge *models.Edge) bool {
		return edge.Source == stepID || edge.Target == stepID
	})

	for _, step := range g.workflow.Steps {
		if step.Condition != nil && step.Condition.PreviousStep == stepID {
			step.Condition = nil
		}
	}
}

func (g *Graph) step(stepID string) (*models.Step, error) {
	step := g.workflow.StepByID(stepID)
	if step == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrStepNotFound, stepID)
	}

	return step, nil
}

// RenameStep changes a step's display name.
func (g *Graph) RenameStep(stepID, name string) error {
	step, err := g.step(stepID)
	if err != nil {
		return err
	}

	step.Name = name

	return nil
}

// SetRetry replaces a step's retry policy; nil removes it.
func (g *Graph) SetRetry(stepID string, retry *models.Retry) error {
	step, err := g.step(stepID)
	if err != nil {
		return err
	}

	step.Retry = retry

	return nil
}

// SetCondition gates a step on an earlier step's outcome; nil removes the gate.
func (g *Graph) SetCondition(stepID string, condition *models.StepCondition) error {
	step, err := g.step(stepID)
	if err != nil {
		return err
	}

	if condition != nil {
		if _, err := g.step(condition.PreviousStep); err != nil {
			return err
		}
	}

	step.Condition = condition

	return nil
}

// AddAction appends an action with catalog defaults and returns its index.
func (g *Graph) AddAction(stepID string, actionType models.ActionType) (int, error) {
	step, err := g.step(stepID)
	if err != nil {
		return 0, err
	}

	action, err := g.catalog.NewAction(actionType)
	if err != nil {
		return 0, err
	}

	step.Actions = append(step.Actions, action)

	return len(step.Actions) - 1, nil
}

func checkIndex(step *models.Step, index int) error {
	if index < 0 || index >= len(step.Actions) {
		return fmt.Errorf("%w: %d not in [0, %d)", models.ErrIndexOutOfRange, index, len(step.Actions))
	}

	return nil
}

// RemoveAction deletes the action at index.
func (g *Graph) RemoveAction(stepID string, index int) error {
	step, err := g.step(stepID)
	if err != nil {
		return err
	}

	if err := checkIndex(step, index); err != nil {
		return err
	}

	step.Actions = slices.Delete(step.Actions, index, index+1)

	return nil
}

// MoveAction reorders an action within its step.
func (g *Graph) MoveAction(stepID string, from, to int) error {
	step, err := g.step(stepID)
	if err != nil {
		return err
	}

	if err := checkIndex(step, from); err != nil {
		return err
	}

	if err := checkIndex(step, to); err != nil {
		return err
	}

	action := step.Actions[from]
	step.Actions = slices.Delete(step.Actions, from, from+1)
	step.Actions = slices.Insert(step.Actions, to, action)

	return nil
}

// SetActionParams replaces the params of the action at index.
func (g *Graph) SetActionParams(stepID string, index int, params models.ActionParams) error {
	step, err := g.step(stepID)
	if err != nil {
		return err
	}

	if err := checkIndex(step, index); err != nil {
		return err
	}

	action := step.Actions[index]
	if params == nil || params.ActionType() != action.Type {
		return fmt.Errorf("%w: action %d is %s", models.ErrParamsMismatch, index, action.Type)
	}

	action.Params = params

	return nil
}

// AddEdge links two steps. Adding an existing edge is a no-op.
// Branch labels need a source ending with an if action, and an edge closing a cycle is refused.
func (g *Graph) AddEdge(source, target string, branch models.BranchLabel) error {
	from, err := g.step(source)
	if err != nil {
		return err
	}

	if _, err := g.step(target); err != nil {
		return err
	}

	if !branch.IsValid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidBranchLabel, branch)
	}

	if branch != models.BranchNone && !from.EndsWithIf() {
		return fmt.Errorf("%w: %s does not end with an if action", models.ErrInvalidBranchLabel, source)
	}

	for _, edge := range g.workflow.Edges {
		if edge.Source == source && edge.Target == target && edge.Branch == branch {
			return nil
		}
	}

	g.workflow.Edges = append(g.workflow.Edges, &models.Edge{Source: source, Target: target, Branch: branch})

	if _, err := Linearize(g.workflow); err != nil {
		g.workflow.Edges = g.workflow.Edges[:len(g.workflow.Edges)-1]

		return err
	}

	return nil
}

// RemoveEdge deletes every edge from source to target.
func (g *Graph) RemoveEdge(source, target string) error {
	before := len(g.workflow.Edges)

	g.workflow.Edges = slices.DeleteFunc(g.workflow.Edges, func(edge *models.Edge) bool {
		return edge.Source == source && edge.Target == target
	})

	if len(g.workflow.Edges) == before {
		return fmt.Errorf("%w: %s -> %s", models.ErrEdgeNotFound, source, target)
	}

	return nil
}
