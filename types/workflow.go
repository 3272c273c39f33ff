package types

import (
	"fmt"
	"maps"
	"strings"
)

// WorkflowStep is one named unit of work inside a Workflow.
type WorkflowStep struct {
	Name         string   `json:"name" yaml:"name"`
	Role         string   `json:"role" yaml:"role"`
	Task         string   `json:"task" yaml:"task"`
	Dependencies []string `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Workflow is a set of steps whose dependencies form a DAG.
type Workflow struct {
	Name  string         `json:"name" yaml:"name"`
	Steps []WorkflowStep `json:"steps" yaml:"steps"`
}

// NewWorkflow creates a workflow from the given steps.
func NewWorkflow(name string, steps ...WorkflowStep) *Workflow {
	return &Workflow{Name: name, Steps: steps}
}

// Step returns the step with the given name.
func (w *Workflow) Step(name string) (WorkflowStep, bool) {
	for _, s := range w.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return WorkflowStep{}, false
}

// Validate checks the structural invariants that do not need a graph walk:
// non-empty unique step names, a role per step, and dependencies that point
// at steps of the same workflow. Cycles, self-dependencies included, are
// detected by the scheduler.
func (w *Workflow) Validate() error {
	if w == nil {
		return NewError(ErrInvalidWorkflow, "workflow is nil")
	}

	var errs []string
	seen := make(map[string]bool, len(w.Steps))
	for i, s := range w.Steps {
		switch {
		case s.Name == "":
			errs = append(errs, fmt.Sprintf("step %d has no name", i))
			continue
		case seen[s.Name]:
			errs = append(errs, fmt.Sprintf("duplicate step name %q", s.Name))
		}
		seen[s.Name] = true
		if s.Role == "" {
			errs = append(errs, fmt.Sprintf("step %q has no role", s.Name))
		}
	}

	for _, s := range w.Steps {
		for _, dep := range s.Dependencies {
			if !seen[dep] {
				errs = append(errs, fmt.Sprintf("step %q depends on unknown step %q", s.Name, dep))
			}
		}
	}

	if len(errs) > 0 {
		return NewError(ErrInvalidWorkflow,
			fmt.Sprintf("workflow %q is invalid: %s", w.Name, strings.Join(errs, "; ")))
	}
	return nil
}

// WorkflowStatus is the terminal state of one workflow execution.
type WorkflowStatus string

const (
	WorkflowStatusSuccess WorkflowStatus = "success"
	WorkflowStatusFailed  WorkflowStatus = "failed"
)

// WorkflowResult is returned by the workflow engine.
type WorkflowResult struct {
	WorkflowName string                 `json:"workflow_name"`
	Status       WorkflowStatus         `json:"status"`
	StepResults  map[string]*TaskResult `json:"step_results"`
	ErrorMessage string                 `json:"error_message,omitempty"`
}

// NewWorkflowSuccess creates a successful workflow result.
func NewWorkflowSuccess(name string, stepResults map[string]*TaskResult) *WorkflowResult {
	return &WorkflowResult{
		WorkflowName: name,
		Status:       WorkflowStatusSuccess,
		StepResults:  maps.Clone(stepResults),
	}
}

// NewWorkflowFailure creates a failed workflow result with no step results.
func NewWorkflowFailure(name, errorMessage string) *WorkflowResult {
	return &WorkflowResult{
		WorkflowName: name,
		Status:       WorkflowStatusFailed,
		StepResults:  map[string]*TaskResult{},
		ErrorMessage: errorMessage,
	}
}

// Succeeded reports whether the workflow finished with status success.
func (r *WorkflowResult) Succeeded() bool {
	return r != nil && r.Status == WorkflowStatusSuccess
}
