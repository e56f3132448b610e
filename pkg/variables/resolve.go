package variables

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/oliveagle/jsonpath"
)

// ErrUnresolvedVariable indicates a reference that cannot be resolved against the namespace.
var ErrUnresolvedVariable = errors.New("unresolved variable")

// UnresolvedVariableError carries the reference that failed and why.
type UnresolvedVariableError struct {
	Reference string
	Reason    string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("unresolved variable %s: %s", e.Reference, e.Reason)
}

func (e *UnresolvedVariableError) Is(target error) bool {
	return target == ErrUnresolvedVariable
}

// IsUnresolved reports whether err is, or wraps, an unresolved variable error.
func IsUnresolved(err error) bool {
	return errors.Is(err, ErrUnresolvedVariable)
}

// Loop is the current forEach iteration.
type Loop struct {
	Item  any
	Index int
}

// Namespace is what references resolve against: step id to {"result": ...}, plus the loop item.
type Namespace struct {
	Steps map[string]any
	Loop  *Loop
}

// WithLoop returns a copy of the namespace bound to a loop item.
func (n Namespace) WithLoop(item any, index int) Namespace {
	return Namespace{Steps: n.Steps, Loop: &Loop{Item: item, Index: index}}
}

// Resolve substitutes every reference in s. A string that is exactly one
// reference resolves to the referenced value itself; anything else becomes a string.
func Resolve(s string, namespace Namespace) (any, error) {
	return Parse(s).Resolve(namespace)
}

// Resolve evaluates the template against the namespace.
func (t Template) Resolve(namespace Namespace) (any, error) {
	return t.resolve(namespace, nil)
}

// resolve evaluates the template; onMissing, when set, supplies a value for unresolved references.
func (t Template) resolve(namespace Namespace, onMissing func(Part, error) (any, error)) (any, error) {
	lookup := func(part Part) (any, error) {
		value, err := lookupPart(part, namespace)
		if err != nil && onMissing != nil {
			return onMissing(part, err)
		}

		return value, err
	}

	if part, ok := t.Single(); ok {
		return lookup(part)
	}

	if t.IsLiteral() {
		return t.Raw, nil
	}

	var out strings.Builder

	for _, part := range t.Parts {
		if literal, ok := part.(Literal); ok {
			out.WriteString(literal.Text)
			continue
		}

		value, err := lookup(part)
		if err != nil {
			return nil, err
		}

		out.WriteString(Stringify(value))
	}

	return out.String(), nil
}

func lookupPart(part Part, namespace Namespace) (any, error) {
	switch ref := part.(type) {
	case StepResultRef:
		root, ok := namespace.Steps[ref.StepID]
		if !ok || root == nil {
			return nil, &UnresolvedVariableError{Reference: ref.String(), Reason: fmt.Sprintf("step %s has no result", ref.StepID)}
		}

		value, err := walk(root, append([]string{resultKey}, ref.Path...))
		if err != nil {
			return nil, &UnresolvedVariableError{Reference: ref.String(), Reason: err.Error()}
		}

		return value, nil
	case LoopItemRef:
		if namespace.Loop == nil {
			return nil, &UnresolvedVariableError{Reference: ref.String(), Reason: "item used outside a forEach"}
		}

		value, err := walk(namespace.Loop.Item, ref.Path)
		if err != nil {
			return nil, &UnresolvedVariableError{Reference: ref.String(), Reason: err.Error()}
		}

		return value, nil
	case Literal:
		return ref.Text, nil
	default:
		return nil, fmt.Errorf("unsupported template part %T", part)
	}
}

// walk follows a dotted path one segment at a time. Objects are addressed by key,
// lists by an index in [0, len).
func walk(root any, path []string) (any, error) {
	current := root

	for _, segment := range path {
		next, err := descend(current, segment)
		if err != nil {
			return nil, err
		}

		current = next
	}

	return current, nil
}

func descend(current any, segment string) (any, error) {
	if current == nil {
		return nil, fmt.Errorf("cannot read %s of null", segment)
	}

	switch reflect.TypeOf(current).Kind() {
	case reflect.Map:
		return jsonpath.JsonPathLookup(current, "$."+segment)
	case reflect.Slice:
		index, err := strconv.Atoi(segment)
		if err != nil || index < 0 {
			return nil, fmt.Errorf("list index %q is not a non-negative integer", segment)
		}

		if length := reflect.ValueOf(current).Len(); index >= length {
			return nil, fmt.Errorf("list index %d out of range [0, %d)", index, length)
		}

		return jsonpath.JsonPathLookup(current, "$["+strconv.Itoa(index)+"]")
	default:
		return nil, fmt.Errorf("cannot read %s of %T", segment, current)
	}
}

// Stringify renders a resolved value for interpolation into text.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case fmt.Stringer:
		return v.String()
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(encoded)
	}
}
