package services

import (
	"context"
	"fmt"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/variables"
	"github.com/dukex/socialflow/pkg/workflow"
)

// checkStructure rejects graphs that can never be ordered: null entries and cycles.
func checkStructure(wf *models.Workflow) error {
	_, err := workflow.Linearize(wf)

	return err
}

// edit loads a record, applies change to its graph and saves it when change succeeds
// and the result can still be ordered.
func (w *Workflow) edit(ctx context.Context, userID, id string, change func(*workflow.Graph) error) (*models.WorkflowRecord, error) {
	record, err := w.FetchByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := change(workflow.New(record.Workflow, w.catalog)); err != nil {
		return nil, err
	}

	if err := checkStructure(record.Workflow); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return record, nil
}

// AddStep appends an empty step and returns its id with the updated record.
func (w *Workflow) AddStep(ctx context.Context, userID, id, name string) (string, *models.WorkflowRecord, error) {
	var stepID string

	record, err := w.edit(ctx, userID, id, func(g *workflow.Graph) error {
		stepID = g.AddStep(name)

		return nil
	})
	if err != nil {
		return "", nil, err
	}

	return stepID, record, nil
}

// RemoveStep deletes a step with its edges. Unknown steps are ignored.
func (w *Workflow) RemoveStep(ctx context.Context, userID, id, stepID string) (*models.WorkflowRecord, error) {
	return w.edit(ctx, userID, id, func(g *workflow.Graph) error {
		g.RemoveStep(stepID)

		return nil
	})
}

// StepUpdate carries the optional step settings the editor changes.
type StepUpdate struct {
	Name      *string
	Retry     *models.Retry
	Condition *models.StepCondition
	Position  *models.Position

	ClearRetry     bool
	ClearCondition bool
}

// UpdateStep applies the non-nil fields of update to a step.
func (w *Workflow) UpdateStep(ctx context.Context, userID, id, stepID string, update StepUpdate) (*models.WorkflowRecord, error) {
	return w.edit(ctx, userID, id, func(g *workflow.Graph) error {
		if update.Name != nil {
			if err := g.RenameStep(stepID, *update.Name); err != nil {
				return err
			}
		}

		if update.Retry != nil || update.ClearRetry {
			if err := g.SetRetry(stepID, update.Retry); err != nil {
				return err
			}
		}

		if update.Condition != nil || update.ClearCondition {
			if err := g.SetCondition(stepID, update.Condition); err != nil {
				return err
			}
		}

		if update.Position != nil {
			step := g.Workflow().StepByID(stepID)
			if step == nil {
				return fmt.Errorf("%w: %s", models.ErrStepNotFound, stepID)
			}

			step.Position = update.Position
		}

		return nil
	})
}

// AddAction appends an action with catalog defaults and returns its index.
func (w *Workflow) AddAction(ctx context.Context, userID, id, stepID string, actionType models.ActionType) (int, *models.WorkflowRecord, error) {
	var index int

	record, err := w.edit(ctx, userID, id, func(g *workflow.Graph) error {
		var err error

		index, err = g.AddAction(stepID, actionType)

		return err
	})
	if err != nil {
		return 0, nil, err
	}

	return index, record, nil
}

func (w *Workflow) RemoveAction(ctx context.Context, userID, id, stepID string, index int) (*models.WorkflowRecord, error) {
	return w.edit(ctx, userID, id, func(g *workflow.Graph) error {
		return g.RemoveAction(stepID, index)
	})
}

func (w *Workflow) MoveAction(ctx context.Context, userID, id, stepID string, from, to int) (*models.WorkflowRecord, error) {
	return w.edit(ctx, userID, id, func(g *workflow.Graph) error {
		return g.MoveAction(stepID, from, to)
	})
}

func (w *Workflow) SetActionParams(ctx context.Context, userID, id, stepID string, index int, params models.ActionParams) (*models.WorkflowRecord, error) {
	return w.edit(ctx, userID, id, func(g *workflow.Graph) error {
		return g.SetActionParams(stepID, index, params)
	})
}

func (w *Workflow) AddEdge(ctx context.Context, userID, id, source, target string, branch models.BranchLabel) (*models.WorkflowRecord, error) {
	return w.edit(ctx, userID, id, func(g *workflow.Graph) error {
		return g.AddEdge(source, target, branch)
	})
}

func (w *Workflow) RemoveEdge(ctx context.Context, userID, id, source, target string) (*models.WorkflowRecord, error) {
	return w.edit(ctx, userID, id, func(g *workflow.Graph) error {
		return g.RemoveEdge(source, target)
	})
}

// Validate returns every structural problem of the stored workflow.
func (w *Workflow) Validate(ctx context.Context, userID, id string) ([]workflow.ValidationError, error) {
	record, err := w.FetchByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	return workflow.New(record.Workflow, w.catalog).Validate(), nil
}

// Order returns the step ids in execution order.
func (w *Workflow) Order(ctx context.Context, userID, id string) ([]string, error) {
	record, err := w.FetchByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	return workflow.New(record.Workflow, w.catalog).Linearize()
}

// Variables lists the references available to the step uptoStepID.
func (w *Workflow) Variables(ctx context.Context, userID, id, uptoStepID string) ([]variables.Variable, error) {
	record, err := w.FetchByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	return variables.NewChecker(record.Workflow, w.catalog).ListAvailableVariables(uptoStepID)
}

// Bindings returns advisory warnings for references whose shape does not fit their field.
func (w *Workflow) Bindings(ctx context.Context, userID, id string) ([]variables.Warning, error) {
	record, err := w.FetchByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	return variables.NewChecker(record.Workflow, w.catalog).CheckBindings(), nil
}
