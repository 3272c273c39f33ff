package types

import (
	"maps"
	"time"
)

// TaskRequest is a single unit of work addressed to the agent registered
// under Role. It must not be mutated after construction.
type TaskRequest struct {
	Role    string         `json:"role" yaml:"role"`
	Task    string         `json:"task" yaml:"task"`
	Context map[string]any `json:"context,omitempty" yaml:"context,omitempty"`
}

// NewTaskRequest creates a request. The context map is copied; nil stays nil.
func NewTaskRequest(role, task string, context map[string]any) *TaskRequest {
	return &TaskRequest{
		Role:    role,
		Task:    task,
		Context: cloneMap(context),
	}
}

// WithContextValue returns a copy of the request with key set in its context.
func (r *TaskRequest) WithContextValue(key string, value any) *TaskRequest {
	ctx := cloneMap(r.Context)
	if ctx == nil {
		ctx = make(map[string]any, 1)
	}
	ctx[key] = value
	return &TaskRequest{Role: r.Role, Task: r.Task, Context: ctx}
}

// ContextValue returns the context entry for key.
func (r *TaskRequest) ContextValue(key string) (any, bool) {
	if r.Context == nil {
		return nil, false
	}
	v, ok := r.Context[key]
	return v, ok
}

// TaskResult is the outcome of executing one TaskRequest.
//
// A successful result never carries an error message and a failed result
// never carries output. Use NewSuccessResult / NewFailureResult so the
// invariant holds.
type TaskResult struct {
	Success      bool           `json:"success"`
	AgentName    string         `json:"agent_name"`
	Task         string         `json:"task"`
	Output       string         `json:"output,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	DurationMs   int64          `json:"duration_ms"`
}

// NewSuccessResult creates a successful result.
func NewSuccessResult(agentName, task, output string, duration time.Duration) *TaskResult {
	return &TaskResult{
		Success:    true,
		AgentName:  agentName,
		Task:       task,
		Output:     output,
		DurationMs: duration.Milliseconds(),
	}
}

// NewFailureResult creates a failed result.
func NewFailureResult(agentName, task, errorMessage string, duration time.Duration) *TaskResult {
	return &TaskResult{
		Success:      false,
		AgentName:    agentName,
		Task:         task,
		ErrorMessage: errorMessage,
		DurationMs:   duration.Milliseconds(),
	}
}

// WithMetadata returns a copy of the result with key set in its metadata.
func (r *TaskResult) WithMetadata(key string, value any) *TaskResult {
	out := r.Clone()
	if out.Metadata == nil {
		out.Metadata = make(map[string]any, 1)
	}
	out.Metadata[key] = value
	return out
}

// Clone returns a deep-enough copy: the metadata map is copied, its values are shared.
func (r *TaskResult) Clone() *TaskResult {
	out := *r
	out.Metadata = cloneMap(r.Metadata)
	return &out
}

// Duration returns the recorded execution time.
func (r *TaskResult) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// Normalize returns a copy that satisfies the success/failure invariant.
// Missing fields are filled from the request that produced the result.
func (r *TaskResult) Normalize(req *TaskRequest, elapsed time.Duration) *TaskResult {
	out := r.Clone()
	if req != nil {
		if out.AgentName == "" {
			out.AgentName = req.Role
		}
		if out.Task == "" {
			out.Task = req.Task
		}
	}
	if out.DurationMs <= 0 {
		out.DurationMs = elapsed.Milliseconds()
	}
	if out.Success {
		out.ErrorMessage = ""
	} else {
		out.Output = ""
		if out.ErrorMessage == "" {
			out.ErrorMessage = "agent reported failure without a message"
		}
	}
	return out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}
