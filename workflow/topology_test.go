package workflow

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/BaSui01/taskflow/testutil/fixtures"
	"github.com/BaSui01/taskflow/types"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(steps []types.WorkflowStep) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = s.Name
	}
	return out
}

func TestTopologicalSort(t *testing.T) {
	tests := []struct {
		name  string
		steps []types.WorkflowStep
		want  []string
	}{
		{
			name: "empty",
			want: []string{},
		},
		{
			name: "independent steps keep declaration order",
			steps: []types.WorkflowStep{
				{Name: "c"}, {Name: "a"}, {Name: "b"},
			},
			want: []string{"c", "a", "b"},
		},
		{
			name:  "diamond",
			steps: fixtures.Diamond().Steps,
			want:  []string{"a", "b", "c", "d"},
		},
		{
			name: "dependency declared after dependent",
			steps: []types.WorkflowStep{
				{Name: "report", Dependencies: []string{"fetch", "parse"}},
				{Name: "parse", Dependencies: []string{"fetch"}},
				{Name: "fetch"},
			},
			want: []string{"fetch", "parse", "report"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order, err := TopologicalSort(tt.steps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(order))
		})
	}
}

func TestTopologicalSort_Cycle(t *testing.T) {
	_, err := TopologicalSort(fixtures.Cycle().Steps)
	require.Error(t, err)

	var cyc *CyclicWorkflowError
	require.True(t, errors.As(err, &cyc))
	assert.Equal(t, []string{"x", "y", "z"}, cyc.Steps)
	assert.Contains(t, err.Error(), "x, y, z")
	assert.Equal(t, types.ErrCyclicWorkflow, types.GetErrorCode(err))
}

func TestTopologicalSort_SelfLoop(t *testing.T) {
	_, err := TopologicalSort([]types.WorkflowStep{{Name: "a", Dependencies: []string{"a"}}})

	var cyc *CyclicWorkflowError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"a"}, cyc.Steps)
}

func TestTopologicalSort_InvalidReferences(t *testing.T) {
	_, err := TopologicalSort([]types.WorkflowStep{{Name: "a"}, {Name: "a"}})
	assert.True(t, types.IsCode(err, types.ErrInvalidWorkflow))

	_, err = TopologicalSort([]types.WorkflowStep{{Name: "a", Dependencies: []string{"ghost"}}})
	assert.True(t, types.IsCode(err, types.ErrInvalidWorkflow))
	assert.Contains(t, err.Error(), "ghost")
}

func TestLevels(t *testing.T) {
	waves, err := Levels(fixtures.Diamond().Steps)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, waves)

	waves, err = Levels(fixtures.ChainSteps())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"A", "B", "C"}}, waves)

	_, err = Levels(fixtures.Cycle().Steps)
	assert.Error(t, err)
}

// randomDAG builds n steps where step i may depend on any step j < i, then
// shuffles the declaration order.
func randomDAG(n int, seed uint64) []types.WorkflowStep {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	steps := make([]types.WorkflowStep, n)
	for i := range steps {
		steps[i] = types.WorkflowStep{Name: fmt.Sprintf("s%d", i), Role: "r", Task: "t"}
		for j := 0; j < i; j++ {
			if rng.IntN(3) == 0 {
				steps[i].Dependencies = append(steps[i].Dependencies, fmt.Sprintf("s%d", j))
			}
		}
	}
	rng.Shuffle(len(steps), func(a, b int) { steps[a], steps[b] = steps[b], steps[a] })
	return steps
}

func TestProperty_TopologicalOrderRespectsDependencies(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("every step is placed after all of its dependencies", prop.ForAll(
		func(n int, seed uint64) bool {
			steps := randomDAG(n, seed)
			order, err := TopologicalSort(steps)
			if err != nil {
				t.Logf("unexpected error: %v", err)
				return false
			}
			if len(order) != len(steps) {
				return false
			}

			pos := make(map[string]int, len(order))
			for i, s := range order {
				pos[s.Name] = i
			}
			for _, s := range steps {
				for _, dep := range s.Dependencies {
					if pos[dep] >= pos[s.Name] {
						t.Logf("%s placed before its dependency %s", s.Name, dep)
						return false
					}
				}
			}
			return true
		},
		gen.IntRange(1, 25),
		gen.UInt64(),
	))

	properties.Property("sorting is deterministic", prop.ForAll(
		func(n int, seed uint64) bool {
			steps := randomDAG(n, seed)
			first, err1 := TopologicalSort(steps)
			second, err2 := TopologicalSort(steps)
			if err1 != nil || err2 != nil {
				return false
			}
			return fmt.Sprint(names(first)) == fmt.Sprint(names(second))
		},
		gen.IntRange(1, 25),
		gen.UInt64(),
	))

	properties.Property("a back edge is always reported as a cycle", prop.ForAll(
		func(n int, seed uint64) bool {
			steps := randomDAG(n, seed)
			// Chain s0 <- s(n-1) on top of the DAG, then close it.
			for i := range steps {
				switch steps[i].Name {
				case "s0":
					steps[i].Dependencies = append(steps[i].Dependencies, fmt.Sprintf("s%d", n-1))
				case fmt.Sprintf("s%d", n-1):
					steps[i].Dependencies = appendUnique(steps[i].Dependencies, "s0")
				}
			}
			_, err := TopologicalSort(steps)
			var cyc *CyclicWorkflowError
			return errors.As(err, &cyc) && len(cyc.Steps) >= 2
		},
		gen.IntRange(2, 25),
		gen.UInt64(),
	))

	properties.TestingRun(t)
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
