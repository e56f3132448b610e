package variables

import (
	"fmt"

	"github.com/dukex/socialflow/pkg/catalog"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/workflow"
)

// Variable is one path offered by the editor's variable picker.
type Variable struct {
	StepID     string                 `json:"step_id"`
	StepName   string                 `json:"step_name"`
	ActionType models.ActionType      `json:"action_type"`
	Path       string                 `json:"path"`
	Reference  string                 `json:"reference"`
	Shape      catalog.Classification `json:"shape"`
	List       bool                   `json:"list"`
}

// ListAvailableVariables lists the result leaves of every step that runs
// before uptoStepID in linearized order.
func ListAvailableVariables(wf *models.Workflow, uptoStepID string) ([]Variable, error) {
	return NewChecker(wf, nil).ListAvailableVariables(uptoStepID)
}

func (c *Checker) ListAvailableVariables(uptoStepID string) ([]Variable, error) {
	if c.workflow.StepByID(uptoStepID) == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrStepNotFound, uptoStepID)
	}

	order, err := workflow.Linearize(c.workflow)
	if err != nil {
		return nil, err
	}

	variables := make([]Variable, 0)

	for _, stepID := range order {
		if stepID == uptoStepID {
			break
		}

		variables = append(variables, c.stepVariables(c.workflow.StepByID(stepID))...)
	}

	return variables, nil
}

// stepVariables merges the result leaves of a step's actions. A later action
// declaring the same leaf wins, matching how step results are merged at run time.
func (c *Checker) stepVariables(step *models.Step) []Variable {
	index := make(map[string]int)
	variables := make([]Variable, 0)

	for _, action := range step.Actions {
		descriptor, err := c.catalog.Describe(action.Type)
		if err != nil {
			continue
		}

		for _, result := range descriptor.Results {
			ref := StepResultRef{StepID: step.ID, Path: []string{result.Path}}
			variable := Variable{
				StepID:     step.ID,
				StepName:   step.Name,
				ActionType: action.Type,
				Path:       resultKey + "." + result.Path,
				Reference:  ref.String(),
				Shape:      result.Shape,
				List:       result.List,
			}

			if i, seen := index[result.Path]; seen {
				variables[i] = variable
				continue
			}

			index[result.Path] = len(variables)
			variables = append(variables, variable)
		}
	}

	return variables
}
