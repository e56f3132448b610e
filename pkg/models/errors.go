package models

import (
	"errors"
	"fmt"
	"strings"
)

// Structural errors raised synchronously by graph edits and the action catalog.
var (
	// ErrUnknownActionType indicates an action type tag outside the catalog.
	ErrUnknownActionType = errors.New("unknown action type")

	// ErrStepNotFound indicates no step carries the given id.
	ErrStepNotFound = errors.New("step not found")

	// ErrIndexOutOfRange indicates an action index outside the step's action list.
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrCyclicGraph indicates the edges describe a cycle.
	ErrCyclicGraph = errors.New("cyclic graph")

	// ErrEdgeNotFound indicates no edge joins the given steps.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrInvalidBranchLabel indicates an edge label other than onTrue or onFalse.
	ErrInvalidBranchLabel = errors.New("invalid branch label")

	// ErrParamsMismatch indicates params of one action type assigned to an action of another.
	ErrParamsMismatch = errors.New("params do not match action type")

	// ErrNullEntry indicates a null where a step, edge or action is required.
	ErrNullEntry = errors.New("null entry")
)

// Execution boundary errors.
var (
	// ErrAccountNotEligible indicates the target account is not currently authenticated.
	ErrAccountNotEligible = errors.New("account not eligible")

	// ErrExecutionNotFound indicates the runner does not know the execution id.
	ErrExecutionNotFound = errors.New("execution not found")
)

// CyclicGraphError reports the cycle found while linearizing.
type CyclicGraphError struct {
	Cycle []string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("cyclic graph: %s", strings.Join(e.Cycle, " -> "))
}

func (e *CyclicGraphError) Is(target error) bool {
	return target == ErrCyclicGraph
}

// IsCyclicGraph reports whether err is, or wraps, a cycle error.
func IsCyclicGraph(err error) bool {
	return errors.Is(err, ErrCyclicGraph)
}
