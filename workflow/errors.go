package workflow

import (
	"fmt"
	"strings"

	"github.com/BaSui01/taskflow/types"
)

// CyclicWorkflowError reports the steps that could not be placed in a
// topological order because they sit on or behind a dependency cycle.
type CyclicWorkflowError struct {
	Steps []string
}

func (e *CyclicWorkflowError) Error() string {
	return fmt.Sprintf("workflow contains a dependency cycle; unresolved steps: %s", strings.Join(e.Steps, ", "))
}

// Unwrap exposes the CYCLIC_WORKFLOW code to types.GetErrorCode.
func (e *CyclicWorkflowError) Unwrap() error {
	return types.NewError(types.ErrCyclicWorkflow, "workflow contains a dependency cycle")
}
