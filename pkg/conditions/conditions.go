// Package conditions evaluates the operator of an if action.
package conditions

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/dukex/socialflow/pkg/variables"
)

// Operator compares a resolved variable with a value.
type Operator string

const (
	Equals      Operator = "equals"
	NotEquals   Operator = "notEquals"
	IsEmpty     Operator = "isEmpty"
	IsNotEmpty  Operator = "isNotEmpty"
	GreaterThan Operator = "greaterThan"
	LessThan    Operator = "lessThan"
	Contains    Operator = "contains"
)

var (
	// ErrUnknownOperator indicates an operator outside the supported set.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrAlreadyEvaluated indicates a second evaluation of the same if action in one run.
	ErrAlreadyEvaluated = errors.New("condition already evaluated")
)

// Outcome is the state of an if action within a run.
type Outcome int

const (
	Pending Outcome = iota
	True
	False
)

func (o Outcome) String() string {
	switch o {
	case True:
		return "true"
	case False:
		return "false"
	default:
		return "pending"
	}
}

// Evaluation moves from Pending to True or False exactly once.
type Evaluation struct {
	outcome Outcome
}

// NewEvaluation returns a pending evaluation.
func NewEvaluation() *Evaluation {
	return &Evaluation{outcome: Pending}
}

// Outcome returns the current state.
func (e *Evaluation) Outcome() Outcome {
	return e.outcome
}

// Evaluate settles the outcome. An unknown operator leaves it pending.
func (e *Evaluation) Evaluate(operator Operator, left any, right string) (Outcome, error) {
	if e.outcome != Pending {
		return e.outcome, ErrAlreadyEvaluated
	}

	ok, err := Compare(operator, left, right)
	if err != nil {
		return Pending, err
	}

	if ok {
		e.outcome = True
	} else {
		e.outcome = False
	}

	return e.outcome, nil
}

// Compare applies the operator. Numeric coercion failures compare as false.
func Compare(operator Operator, left any, right string) (bool, error) {
	switch operator {
	case Equals:
		return equal(left, right), nil
	case NotEquals:
		return !equal(left, right), nil
	case IsEmpty:
		return empty(left), nil
	case IsNotEmpty:
		return !empty(left), nil
	case GreaterThan, LessThan:
		l, lok := number(left)
		r, rok := number(right)

		if !lok || !rok {
			return false, nil
		}

		if operator == GreaterThan {
			return l > r, nil
		}

		return l < r, nil
	case Contains:
		return contains(left, right), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, operator)
	}
}

func equal(left any, right string) bool {
	if variables.Stringify(left) == right {
		return true
	}

	l, lok := number(left)
	r, rok := number(right)

	return lok && rok && l == r
}

func empty(value any) bool {
	if value == nil {
		return true
	}

	if s, ok := value.(string); ok {
		return s == ""
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return v.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// number coerces numbers, numeric strings, and lists (by length).
func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return float64(rv.Len()), true
	}

	return 0, false
}

func contains(left any, right string) bool {
	if s, ok := left.(string); ok {
		return strings.Contains(s, right)
	}

	v := reflect.ValueOf(left)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < v.Len(); i++ {
			if variables.Stringify(v.Index(i).Interface()) == right {
				return true
			}
		}

		return false
	case reflect.Map:
		for _, key := range v.MapKeys() {
			if variables.Stringify(key.Interface()) == right {
				return true
			}
		}

		return false
	default:
		return strings.Contains(variables.Stringify(left), right)
	}
}
