package workflow

import (
	"slices"

	"github.com/dukex/socialflow/pkg/models"
)

// Linearize returns the static execution order of the workflow.
func (g *Graph) Linearize() ([]string, error) {
	return Linearize(g.workflow)
}

// Linearize orders steps for execution. Without edges this is stored order.
// With edges it is a topological order starting from steps without incoming
// edges, ties broken by stored order. Edges to unknown steps are ignored.
// Branch pruning is left to execution.
func Linearize(workflow *models.Workflow) ([]string, error) {
	if err := workflow.CheckEntries(); err != nil {
		return nil, err
	}

	order := make([]string, 0, len(workflow.Steps))

	if !workflow.HasEdges() {
		for _, step := range workflow.Steps {
			order = append(order, step.ID)
		}

		return order, nil
	}

	index := make(map[string]int, len(workflow.Steps))
	for i, step := range workflow.Steps {
		index[step.ID] = i
	}

	adjacency := make(map[string][]string, len(workflow.Steps))
	indegree := make(map[string]int, len(workflow.Steps))

	for _, edge := range workflow.Edges {
		if _, ok := index[edge.Source]; !ok {
			continue
		}

		if _, ok := index[edge.Target]; !ok {
			continue
		}

		if slices.Contains(adjacency[edge.Source], edge.Target) {
			continue
		}

		adjacency[edge.Source] = append(adjacency[edge.Source], edge.Target)
		indegree[edge.Target]++
	}

	if cycle := findCycle(workflow.Steps, adjacency); cycle != nil {
		return nil, &models.CyclicGraphError{Cycle: cycle}
	}

	ready := make([]int, 0)

	for i, step := range workflow.Steps {
		if indegree[step.ID] == 0 {
			ready = append(ready, i)
		}
	}

	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]

		stepID := workflow.Steps[current].ID
		order = append(order, stepID)

		for _, target := range adjacency[stepID] {
			indegree[target]--
			if indegree[target] == 0 {
				position, _ := slices.BinarySearch(ready, index[target])
				ready = slices.Insert(ready, position, index[target])
			}
		}
	}

	return order, nil
}

type color int

const (
	white color = iota
	gray
	black
)

// findCycle runs a colouring DFS and returns the first cycle as a closed path, or nil.
func findCycle(steps []*models.Step, adjacency map[string][]string) []string {
	colors := make(map[string]color, len(steps))
	path := make([]string, 0)

	var visit func(id string) []string
	visit = func(id string) []string {
		colors[id] = gray
		path = append(path, id)

		for _, next := range adjacency[id] {
			switch colors[next] {
			case gray:
				start := slices.Index(path, next)
				cycle := slices.Clone(path[start:])

				return append(cycle, next)
			case white:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			case black:
			}
		}

		path = path[:len(path)-1]
		colors[id] = black

		return nil
	}

	for _, step := range steps {
		if colors[step.ID] != white {
			continue
		}

		if cycle := visit(step.ID); cycle != nil {
			return cycle
		}
	}

	return nil
}
