package executor

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/socialflow/pkg/conditions"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/otelhelper"
	"github.com/dukex/socialflow/pkg/variables"
	"go.opentelemetry.io/otel/attribute"
)

// runStep runs the step's actions in order, retrying the whole step on failure.
func (e *Executor) runStep(ctx context.Context, r *run, step *models.Step) *models.StepResult {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "executor.step",
		attribute.String(otelhelper.StepIDKey, step.ID),
		attribute.String(otelhelper.StepNameKey, step.Name),
	)
	defer span.End()

	attempts := 1
	var delay time.Duration

	if step.Retry != nil && step.Retry.MaxAttempts > 1 {
		attempts = step.Retry.MaxAttempts
		delay = step.Retry.Delay()
	}

	result := &models.StepResult{StepID: step.ID, StartedAt: time.Now().UTC()}
	logger := r.logger.With("step_id", step.ID)

	for attempt := 1; attempt <= attempts; attempt++ {
		result.Attempts = attempt
		result.Iterations = nil

		output, outcome, err := e.runActions(ctx, r, step, result)
		if err == nil {
			result.Status = models.StepSucceeded
			result.Result = output
			result.Outcome = outcome
			result.Error = ""
			result.CompletedAt = time.Now().UTC()

			logger.DebugContext(ctx, "Step succeeded", "attempt", attempt)

			return result
		}

		result.Status = models.StepFailed
		result.Error = err.Error()

		logger.WarnContext(ctx, "Step failed", "attempt", attempt, "max_attempts", attempts, "error", err)

		if attempt == attempts || ctx.Err() != nil || r.control.Stopped() {
			break
		}

		if err := e.sleep(ctx, delay); err != nil {
			break
		}
	}

	otelhelper.SetError(span, fmt.Errorf("%s", result.Error), attribute.Int("attempts", result.Attempts))
	result.CompletedAt = time.Now().UTC()

	return result
}

// runActions executes one attempt. Action results merge into one step result,
// later keys winning. The outcome is set when the last action is an if.
func (e *Executor) runActions(ctx context.Context, r *run, step *models.Step, result *models.StepResult) (map[string]any, string, error) {
	output := make(map[string]any)
	outcome := ""

	for i, action := range step.Actions {
		resolved, err := variables.ResolveAction(action, r.namespace, e.policy)
		if err != nil {
			return nil, "", fmt.Errorf("action %d (%s): %w", i, action.Type, err)
		}

		var actionOutput map[string]any

		switch action.Type {
		case models.ActionIf:
			var settled conditions.Outcome

			settled, err = evaluateIf(resolved)
			if err == nil {
				actionOutput = map[string]any{"condition": settled == conditions.True}
				if i == len(step.Actions)-1 {
					outcome = settled.String()
				}
			}
		case models.ActionForEach:
			actionOutput, err = e.forEach(ctx, r, step.ID, resolved, result)
		default:
			actionOutput, err = e.perform(ctx, r, resolved)
		}

		if err != nil {
			return nil, "", fmt.Errorf("action %d (%s): %w", i, action.Type, err)
		}

		for key, value := range actionOutput {
			output[key] = value
		}
	}

	return output, outcome, nil
}

// perform runs a leaf action: delay natively, everything else through the performer.
func (e *Executor) perform(ctx context.Context, r *run, action variables.ResolvedAction) (map[string]any, error) {
	if action.Type == models.ActionDelay {
		seconds, err := toSeconds(action.Params["seconds"])
		if err != nil {
			return nil, err
		}

		if err := e.sleep(ctx, seconds); err != nil {
			return nil, err
		}

		return map[string]any{"success": true}, nil
	}

	if e.performer == nil {
		return nil, fmt.Errorf("no performer for %s", action.Type)
	}

	output, err := e.performer.Perform(ctx, r.accountRef, action)
	if err != nil {
		return nil, err
	}

	if output == nil {
		output = map[string]any{"success": true}
	}

	return output, nil
}

func evaluateIf(action variables.ResolvedAction) (conditions.Outcome, error) {
	evaluation := conditions.NewEvaluation()

	return evaluation.Evaluate(
		conditions.Operator(action.String("operator")),
		action.Params["variable"],
		action.String("value"),
	)
}

// forEach iterates the resolved list in order, running the body once per item.
// A stop request is honoured between iterations.
func (e *Executor) forEach(
	ctx context.Context,
	r *run,
	stepID string,
	action variables.ResolvedAction,
	result *models.StepResult,
) (map[string]any, error) {
	items, err := toList(action.Params["list"])
	if err != nil {
		return nil, err
	}

	outputs := make([]any, 0, len(items))

	for index, item := range items {
		if r.control.Stopped() {
			return nil, ErrStopped
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		report := models.IterationReport{Index: index, Item: item, Results: make([]map[string]any, 0, len(action.Body))}
		namespace := r.namespace.WithLoop(item, index)

		for _, child := range action.Body {
			if child.Type == models.ActionIf || child.Type == models.ActionForEach {
				err = fmt.Errorf("%s is not allowed inside forEach", child.Type)
				break
			}

			var resolved variables.ResolvedAction

			resolved, err = variables.ResolveAction(child, namespace, e.policy)
			if err != nil {
				break
			}

			var output map[string]any

			output, err = e.perform(ctx, r, resolved)
			if err != nil {
				break
			}

			report.Results = append(report.Results, output)
		}

		if err != nil {
			report.Error = err.Error()
		}

		result.Iterations = append(result.Iterations, report)
		r.reporter.IterationFinished(stepID, report)

		if err != nil {
			return nil, fmt.Errorf("iteration %d: %w", index, err)
		}

		outputs = append(outputs, report.Results)
	}

	return map[string]any{"iterations": len(items), "results": outputs}, nil
}

func toList(value any) ([]any, error) {
	switch v := value.(type) {
	case []any:
		return v, nil
	case nil:
		return []any{}, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return []any{}, nil
		}

		return nil, fmt.Errorf("%w: %q", ErrNotAList, v)
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: %T", ErrNotAList, value)
	}

	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}

	return items, nil
}

func toSeconds(value any) (time.Duration, error) {
	var seconds float64

	switch v := value.(type) {
	case float64:
		seconds = v
	case int:
		seconds = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid delay seconds %q", v)
		}

		seconds = parsed
	default:
		return 0, fmt.Errorf("invalid delay seconds %v", value)
	}

	if seconds < 0 {
		return 0, fmt.Errorf("invalid delay seconds %v", seconds)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}
