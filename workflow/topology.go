package workflow

import (
	"fmt"

	"github.com/BaSui01/taskflow/types"
)

// TopologicalSort orders steps so that every step follows all of its
// dependencies. The ready queue is seeded in declaration order and
// dependents are released in declaration order, so the result is
// deterministic for a given input.
func TopologicalSort(steps []types.WorkflowStep) ([]types.WorkflowStep, error) {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		if _, dup := index[s.Name]; dup {
			return nil, types.NewError(types.ErrInvalidWorkflow, fmt.Sprintf("duplicate step name %q", s.Name))
		}
		index[s.Name] = i
	}

	inDegree := make([]int, len(steps))
	dependents := make([][]int, len(steps))
	for i, s := range steps {
		for _, dep := range s.Dependencies {
			j, ok := index[dep]
			if !ok {
				return nil, types.NewError(types.ErrInvalidWorkflow,
					fmt.Sprintf("step %q depends on unknown step %q", s.Name, dep))
			}
			inDegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	queue := make([]int, 0, len(steps))
	for i := range steps {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]types.WorkflowStep, 0, len(steps))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		order = append(order, steps[i])
		for _, d := range dependents[i] {
			inDegree[d]--
			if inDegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if len(order) < len(steps) {
		var unresolved []string
		for i, s := range steps {
			if inDegree[i] > 0 {
				unresolved = append(unresolved, s.Name)
			}
		}
		return nil, &CyclicWorkflowError{Steps: unresolved}
	}
	return order, nil
}

// Levels groups steps into execution waves: every step in wave k depends
// only on steps in earlier waves. Within a wave, steps keep their
// topological order.
func Levels(steps []types.WorkflowStep) ([][]string, error) {
	order, err := TopologicalSort(steps)
	if err != nil {
		return nil, err
	}

	level := make(map[string]int, len(order))
	var waves [][]string
	for _, s := range order {
		l := 0
		for _, dep := range s.Dependencies {
			l = max(l, level[dep]+1)
		}
		level[s.Name] = l
		if l == len(waves) {
			waves = append(waves, nil)
		}
		waves[l] = append(waves[l], s.Name)
	}
	return waves, nil
}
