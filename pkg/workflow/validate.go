package workflow

import (
	"errors"
	"fmt"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/go-playground/validator/v10"
)

// Validation error codes.
const (
	CodeInvalidField        = "invalid_field"
	CodeDuplicateStepID     = "duplicate_step_id"
	CodeUnknownStep         = "unknown_step"
	CodeBranchCount         = "branch_count"
	CodeUnexpectedBranch    = "unexpected_branch"
	CodeInvalidBranch       = "invalid_branch"
	CodeMissingParam        = "missing_param"
	CodeInvalidParams       = "invalid_params"
	CodeNestedContainer     = "nested_container"
	CodeUnknownConditionRef = "unknown_condition_step"
	CodeNullEntry           = "null_entry"
)

// ValidationError is a single structural problem. Validation collects all of them.
type ValidationError struct {
	Code    string `json:"code"`
	StepID  string `json:"step_id,omitempty"`
	Path    string `json:"path,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}

	return e.Message
}

var validate = validator.New()

// Validate checks the wrapped workflow.
func (g *Graph) Validate() []ValidationError {
	v := &validation{graph: g, errors: make([]ValidationError, 0)}

	if err := g.workflow.CheckEntries(); err != nil {
		v.add(ValidationError{Code: CodeNullEntry, Message: err.Error()})

		return v.errors
	}

	v.fields()
	v.stepIDs()
	v.edges()
	v.conditions()

	for _, step := range g.workflow.Steps {
		for i, action := range step.Actions {
			v.action(step.ID, fmt.Sprintf("steps[%s].actions[%d]", step.ID, i), action, false)
		}
	}

	return v.errors
}

type validation struct {
	graph  *Graph
	errors []ValidationError
}

func (v *validation) add(err ValidationError) {
	v.errors = append(v.errors, err)
}

func (v *validation) fields() {
	err := validate.Struct(v.graph.workflow)
	if err == nil {
		return
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		v.add(ValidationError{Code: CodeInvalidField, Message: err.Error()})
		return
	}

	for _, fieldError := range fieldErrors {
		v.add(ValidationError{
			Code:    CodeInvalidField,
			Path:    fieldError.Namespace(),
			Field:   fieldError.Field(),
			Message: fmt.Sprintf("failed on the '%s' rule", fieldError.Tag()),
		})
	}
}

func (v *validation) stepIDs() {
	seen := make(map[string]struct{}, len(v.graph.workflow.Steps))

	for _, step := range v.graph.workflow.Steps {
		if _, dup := seen[step.ID]; dup {
			v.add(ValidationError{
				Code:    CodeDuplicateStepID,
				StepID:  step.ID,
				Message: fmt.Sprintf("step id %s is used more than once", step.ID),
			})
		}

		seen[step.ID] = struct{}{}
	}
}

func (v *validation) edges() {
	workflow := v.graph.workflow

	for i, edge := range workflow.Edges {
		path := fmt.Sprintf("edges[%d]", i)

		for _, ref := range []string{edge.Source, edge.Target} {
			if workflow.StepByID(ref) == nil {
				v.add(ValidationError{
					Code:    CodeUnknownStep,
					StepID:  ref,
					Path:    path,
					Message: fmt.Sprintf("edge references unknown step %s", ref),
				})
			}
		}

		if !edge.Branch.IsValid() {
			v.add(ValidationError{
				Code:    CodeInvalidBranch,
				StepID:  edge.Source,
				Path:    path,
				Message: fmt.Sprintf("unknown branch label %q", edge.Branch),
			})
		}
	}

	for _, step := range workflow.Steps {
		outgoing := workflow.OutgoingEdges(step.ID)
		onTrue, onFalse := 0, 0

		for _, edge := range outgoing {
			switch edge.Branch {
			case models.BranchOnTrue:
				onTrue++
			case models.BranchOnFalse:
				onFalse++
			case models.BranchNone:
			}
		}

		if !step.EndsWithIf() {
			if onTrue+onFalse > 0 {
				v.add(ValidationError{
					Code:    CodeUnexpectedBranch,
					StepID:  step.ID,
					Message: "branch labels are only allowed on steps ending with an if action",
				})
			}

			continue
		}

		bothOnce := onTrue == 1 && onFalse == 1
		neither := onTrue == 0 && onFalse == 0

		if !bothOnce && !neither {
			v.add(ValidationError{
				Code:   CodeBranchCount,
				StepID: step.ID,
				Message: fmt.Sprintf(
					"conditional step needs onTrue and onFalse exactly once each, or neither (onTrue=%d, onFalse=%d)",
					onTrue, onFalse,
				),
			})
		}
	}
}

func (v *validation) conditions() {
	for _, step := range v.graph.workflow.Steps {
		if step.Condition == nil || step.Condition.PreviousStep == "" {
			continue
		}

		if v.graph.workflow.StepByID(step.Condition.PreviousStep) == nil {
			v.add(ValidationError{
				Code:    CodeUnknownConditionRef,
				StepID:  step.ID,
				Field:   "previousStep",
				Message: fmt.Sprintf("condition references unknown step %s", step.Condition.PreviousStep),
			})
		}
	}
}

func (v *validation) action(stepID, path string, action *models.Action, nested bool) {
	if nested && (action.Type == models.ActionIf || action.Type == models.ActionForEach) {
		v.add(ValidationError{
			Code:    CodeNestedContainer,
			StepID:  stepID,
			Path:    path,
			Message: fmt.Sprintf("%s is not allowed inside forEach", action.Type),
		})
	}

	issues, err := v.graph.catalog.CheckParams(action)
	if err != nil {
		v.add(ValidationError{Code: CodeInvalidParams, StepID: stepID, Path: path, Message: err.Error()})
		return
	}

	for _, issue := range issues {
		code := CodeInvalidParams
		if issue.Missing() {
			code = CodeMissingParam
		}

		v.add(ValidationError{
			Code:    code,
			StepID:  stepID,
			Path:    path + ".params",
			Field:   issue.Field,
			Message: issue.Message,
		})
	}

	params, ok := action.Params.(*models.ForEachParams)
	if !ok {
		return
	}

	for i, child := range params.Actions {
		v.action(stepID, fmt.Sprintf("%s.params.actions[%d]", path, i), child, true)
	}
}

// Validate checks a workflow against the built-in catalog.
func Validate(workflow *models.Workflow) []ValidationError {
	return New(workflow, nil).Validate()
}
