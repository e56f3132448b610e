package variables

import (
	"github.com/dukex/socialflow/pkg/models"
)

// MissingBehavior decides what happens to a field whose reference cannot be resolved.
type MissingBehavior int

const (
	// FailOnMissing fails the action with the unresolved variable error.
	FailOnMissing MissingBehavior = iota
	// EmptyOnMissing substitutes an empty value and carries on.
	EmptyOnMissing
)

// FieldPolicy overrides the default per action type and field name.
type FieldPolicy map[models.ActionType]map[string]MissingBehavior

// Policy is the caller's choice for unresolved references.
type Policy struct {
	Default MissingBehavior
	Fields  FieldPolicy
}

// For returns the behavior for one field.
func (p Policy) For(actionType models.ActionType, field string) MissingBehavior {
	if fields, ok := p.Fields[actionType]; ok {
		if behavior, ok := fields[field]; ok {
			return behavior
		}
	}

	return p.Default
}

// StrictPolicy fails on every unresolved reference.
func StrictPolicy() Policy {
	return Policy{Default: FailOnMissing}
}

// LenientPolicy substitutes empty values everywhere.
func LenientPolicy() Policy {
	return Policy{Default: EmptyOnMissing}
}

// ResolvedAction is an action whose params hold concrete values.
type ResolvedAction struct {
	Type        models.ActionType `json:"type"`
	Params      map[string]any    `json:"params"`
	Description string            `json:"description,omitempty"`
	// Body holds the unresolved nested actions of a forEach; they resolve per iteration.
	Body []*models.Action `json:"-"`
}

// String returns a string param, or "" when absent.
func (a ResolvedAction) String(field string) string {
	value, ok := a.Params[field]
	if !ok {
		return ""
	}

	return Stringify(value)
}

// ResolveAction substitutes every string param of the action. Nested forEach
// actions are left untouched and returned in Body.
func ResolveAction(action *models.Action, namespace Namespace, policy Policy) (ResolvedAction, error) {
	fields, err := action.ParamsMap()
	if err != nil {
		return ResolvedAction{}, err
	}

	resolved := ResolvedAction{
		Type:        action.Type,
		Params:      make(map[string]any, len(fields)),
		Description: action.Description,
	}

	if params, ok := action.Params.(*models.ForEachParams); ok {
		resolved.Body = params.Actions
		delete(fields, "actions")
	}

	for field, raw := range fields {
		text, ok := raw.(string)
		if !ok {
			resolved.Params[field] = raw
			continue
		}

		behavior := policy.For(action.Type, field)

		value, err := Parse(text).resolve(namespace, func(_ Part, err error) (any, error) {
			if behavior == EmptyOnMissing {
				return nil, nil
			}

			return nil, err
		})
		if err != nil {
			return ResolvedAction{}, err
		}

		if value == nil && behavior == EmptyOnMissing {
			value = ""
		}

		resolved.Params[field] = value
	}

	return resolved, nil
}
