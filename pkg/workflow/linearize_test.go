package workflow

import (
	"testing"

	"github.com/dukex/socialflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func workflowWith(ids []string, edges ...*models.Edge) *models.Workflow {
	workflow := models.NewWorkflow("wf", "linearize")
	for _, id := range ids {
		workflow.Steps = append(workflow.Steps, &models.Step{ID: id, Actions: []*models.Action{}})
	}

	workflow.Edges = edges

	return workflow
}

func edge(source, target string) *models.Edge {
	return &models.Edge{Source: source, Target: target}
}

func TestLinearize_NoEdges_StoredOrder(t *testing.T) {
	workflow := workflowWith([]string{"c", "a", "b"})

	for i := 0; i < 10; i++ {
		order, err := Linearize(workflow)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a", "b"}, order)
	}
}

func TestLinearize_Edges(t *testing.T) {
	testCases := []struct {
		name     string
		ids      []string
		edges    []*models.Edge
		expected []string
	}{
		{
			name:     "reversed chain",
			ids:      []string{"a", "b", "c"},
			edges:    []*models.Edge{edge("c", "b"), edge("b", "a")},
			expected: []string{"c", "b", "a"},
		},
		{
			name:     "diamond breaks ties by stored order",
			ids:      []string{"start", "right", "left", "end"},
			edges:    []*models.Edge{edge("start", "left"), edge("start", "right"), edge("left", "end"), edge("right", "end")},
			expected: []string{"start", "right", "left", "end"},
		},
		{
			name:     "disconnected steps are roots",
			ids:      []string{"x", "a", "b"},
			edges:    []*models.Edge{edge("b", "a")},
			expected: []string{"x", "b", "a"},
		},
		{
			name:     "edges to unknown steps are ignored",
			ids:      []string{"a", "b"},
			edges:    []*models.Edge{edge("a", "ghost"), edge("b", "a")},
			expected: []string{"b", "a"},
		},
		{
			name: "branches of an if",
			ids:  []string{"check", "yes", "no", "after"},
			edges: []*models.Edge{
				{Source: "check", Target: "no", Branch: models.BranchOnFalse},
				{Source: "check", Target: "yes", Branch: models.BranchOnTrue},
				edge("yes", "after"),
				edge("no", "after"),
			},
			expected: []string{"check", "yes", "no", "after"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			order, err := Linearize(workflowWith(tc.ids, tc.edges...))
			require.NoError(t, err)
			assert.Equal(t, tc.expected, order)
		})
	}
}

func TestLinearize_Cycle(t *testing.T) {
	workflow := workflowWith([]string{"A", "B", "C"}, edge("A", "B"), edge("B", "C"), edge("C", "A"))

	order, err := Linearize(workflow)
	require.Error(t, err)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, models.ErrCyclicGraph)
	assert.True(t, models.IsCyclicGraph(err))

	var cyclic *models.CyclicGraphError
	require.ErrorAs(t, err, &cyclic)
	assert.Equal(t, []string{"A", "B", "C", "A"}, cyclic.Cycle)
}

func TestLinearize_SelfLoop(t *testing.T) {
	workflow := workflowWith([]string{"a", "b"}, edge("a", "b"), edge("b", "b"))

	_, err := New(workflow, nil).Linearize()

	var cyclic *models.CyclicGraphError
	require.ErrorAs(t, err, &cyclic)
	assert.Equal(t, []string{"b", "b"}, cyclic.Cycle)
}

func TestLinearize_NullEntries(t *testing.T) {
	tests := []struct {
		name     string
		workflow *models.Workflow
	}{
		{
			name:     "null step",
			workflow: &models.Workflow{Steps: []*models.Step{nil}},
		},
		{
			name:     "null action",
			workflow: &models.Workflow{Steps: []*models.Step{{ID: "s1", Actions: []*models.Action{nil}}}},
		},
		{
			name: "null forEach child",
			workflow: &models.Workflow{Steps: []*models.Step{{ID: "s1", Actions: []*models.Action{
				{Type: models.ActionForEach, Params: &models.ForEachParams{Actions: []*models.Action{nil}}},
			}}}},
		},
		{
			name:     "null edge",
			workflow: &models.Workflow{Steps: []*models.Step{{ID: "s1"}}, Edges: []*models.Edge{nil}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Linearize(tt.workflow)
			assert.ErrorIs(t, err, models.ErrNullEntry)

			errs := Validate(tt.workflow)
			require.Len(t, errs, 1)
			assert.Equal(t, CodeNullEntry, errs[0].Code)
		})
	}
}
