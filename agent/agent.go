package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BaSui01/taskflow/types"
)

// Agent executes a single task. Implementations may return an error or
// panic; callers that need containment go through the executor.
type Agent interface {
	ExecuteTask(ctx context.Context, req *types.TaskRequest) (*types.TaskResult, error)
}

// Lookup resolves a role name to an Agent. It must be safe for concurrent use.
type Lookup interface {
	Find(role string) (Agent, bool)
}

// Func adapts a function returning the output text to the Agent interface.
type Func func(ctx context.Context, req *types.TaskRequest) (string, error)

// ExecuteTask implements Agent.
func (f Func) ExecuteTask(ctx context.Context, req *types.TaskRequest) (*types.TaskResult, error) {
	start := time.Now()
	out, err := f(ctx, req)
	if err != nil {
		return nil, err
	}
	return types.NewSuccessResult(req.Role, req.Task, out, time.Since(start)), nil
}

// RenderPrompt flattens a request into prompt text: the task followed by
// the context entries sorted by key.
func RenderPrompt(req *types.TaskRequest) string {
	if len(req.Context) == 0 {
		return req.Task
	}

	keys := make([]string, 0, len(req.Context))
	for k := range req.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(req.Task)
	b.WriteString("\n\nContext:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %v\n", k, req.Context[k])
	}
	return strings.TrimRight(b.String(), "\n")
}
