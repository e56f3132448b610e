package variables

import (
	"fmt"

	"github.com/dukex/socialflow/pkg/catalog"
	"github.com/dukex/socialflow/pkg/models"
)

// Warning flags a binding whose referenced value has a known, different shape.
// Warnings never block saving or running a workflow.
type Warning struct {
	StepID    string        `json:"step_id"`
	Path      string        `json:"path"`
	Field     string        `json:"field"`
	Reference string        `json:"reference"`
	Expected  catalog.Shape `json:"expected"`
	Actual    catalog.Shape `json:"actual"`
	Message   string        `json:"message"`
}

// Checker answers shape questions about a workflow's references.
type Checker struct {
	workflow *models.Workflow
	catalog  *catalog.Catalog
}

// NewChecker returns a checker over workflow. A nil catalog means the built-in one.
func NewChecker(workflow *models.Workflow, actions *catalog.Catalog) *Checker {
	if actions == nil {
		actions = catalog.Default
	}

	return &Checker{workflow: workflow, catalog: actions}
}

// IsCompatible reports whether reference can bind to a field expecting the given shape,
// using the built-in catalog.
func IsCompatible(workflow *models.Workflow, reference string, expected catalog.Shape) bool {
	return NewChecker(workflow, nil).IsCompatible(reference, expected)
}

// IsCompatible is true for literals, for unknown shapes on either side and for
// matching shapes. Only known mismatches are false.
func (c *Checker) IsCompatible(reference string, expected catalog.Shape) bool {
	return c.compatible(reference, expected, catalog.ShapeUnknown)
}

func (c *Checker) compatible(reference string, expected catalog.Shape, item catalog.Shape) bool {
	if expected == "" || expected == catalog.ShapeUnknown {
		return true
	}

	for _, ref := range Parse(reference).References() {
		actual := c.shapeOf(ref, item)
		if actual != catalog.ShapeUnknown && actual != expected {
			return false
		}
	}

	return true
}

// ShapeOf returns the shape of the value a reference points at. Item
// references take the shape of the enclosing forEach list.
func (c *Checker) ShapeOf(reference string, item catalog.Shape) catalog.Shape {
	refs := Parse(reference).References()
	if len(refs) != 1 {
		return catalog.ShapeUnknown
	}

	return c.shapeOf(refs[0], item)
}

func (c *Checker) shapeOf(part Part, item catalog.Shape) catalog.Shape {
	switch ref := part.(type) {
	case LoopItemRef:
		return item
	case StepResultRef:
		return c.stepShape(ref)
	default:
		return catalog.ShapeUnknown
	}
}

// stepShape looks up the result field named by the first path segment on the
// last action of the step that declares it. A bare result takes the shape of
// the step's last action.
func (c *Checker) stepShape(ref StepResultRef) catalog.Shape {
	step := c.workflow.StepByID(ref.StepID)
	if step == nil || len(step.Actions) == 0 {
		return catalog.ShapeUnknown
	}

	if len(ref.Path) == 0 {
		return c.catalog.Classify(step.LastAction().Type).ItemShape()
	}

	for i := len(step.Actions) - 1; i >= 0; i-- {
		descriptor, err := c.catalog.Describe(step.Actions[i].Type)
		if err != nil {
			continue
		}

		if result, ok := descriptor.Result(ref.Path[0]); ok {
			return result.Shape.ItemShape()
		}
	}

	return catalog.ShapeUnknown
}

// CheckBindings runs the compatibility check over every shaped field of every
// action, nested forEach bodies included.
func CheckBindings(workflow *models.Workflow) []Warning {
	return NewChecker(workflow, nil).CheckBindings()
}

func (c *Checker) CheckBindings() []Warning {
	warnings := make([]Warning, 0)

	for _, step := range c.workflow.Steps {
		for i, action := range step.Actions {
			path := fmt.Sprintf("steps[%s].actions[%d]", step.ID, i)
			warnings = c.checkAction(warnings, step.ID, path, action, catalog.ShapeUnknown)
		}
	}

	return warnings
}

func (c *Checker) checkAction(warnings []Warning, stepID, path string, action *models.Action, item catalog.Shape) []Warning {
	descriptor, err := c.catalog.Describe(action.Type)
	if err != nil {
		return warnings
	}

	fields, err := action.ParamsMap()
	if err != nil {
		return warnings
	}

	for _, field := range descriptor.ExpectedFields {
		if field.Shape == "" || field.Shape == catalog.ShapeUnknown {
			continue
		}

		reference, ok := fields[field.Name].(string)
		if !ok || c.compatible(reference, field.Shape, item) {
			continue
		}

		actual := c.ShapeOf(reference, item)
		warnings = append(warnings, Warning{
			StepID:    stepID,
			Path:      path + ".params",
			Field:     field.Name,
			Reference: reference,
			Expected:  field.Shape,
			Actual:    actual,
			Message:   fmt.Sprintf("%s expects a %s but %s is a %s", field.Name, field.Shape, reference, actual),
		})
	}

	params, ok := action.Params.(*models.ForEachParams)
	if !ok {
		return warnings
	}

	listShape := c.ShapeOf(params.List, item)

	for i, child := range params.Actions {
		warnings = c.checkAction(warnings, stepID, fmt.Sprintf("%s.params.actions[%d]", path, i), child, listShape)
	}

	return warnings
}
