package workflow

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/BaSui01/taskflow/types"
)

// ErrHistoryNotFound is returned by HistoryStore.Get for an unknown id.
var ErrHistoryNotFound = errors.New("execution history not found")

// Run modes recorded in ExecutionHistory.
const (
	ModeDAG    = "dag"
	ModeChain  = "chain"
	ModeFanOut = "fanout"
)

// StepRecord is the outcome of one step inside a recorded run.
type StepRecord struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	Success      bool   `json:"success"`
	DurationMs   int64  `json:"duration_ms"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ExecutionHistory records one engine run.
type ExecutionHistory struct {
	ExecutionID  string               `json:"execution_id"`
	WorkflowName string               `json:"workflow_name"`
	Mode         string               `json:"mode"`
	Status       types.WorkflowStatus `json:"status"`
	StartTime    time.Time            `json:"start_time"`
	EndTime      time.Time            `json:"end_time"`
	Duration     time.Duration        `json:"duration"`
	Steps        []*StepRecord        `json:"steps"`
	ErrorMessage string               `json:"error_message,omitempty"`
	mu           sync.Mutex
}

// NewExecutionHistory starts a record for a run.
func NewExecutionHistory(executionID, workflowName, mode string) *ExecutionHistory {
	return &ExecutionHistory{
		ExecutionID:  executionID,
		WorkflowName: workflowName,
		Mode:         mode,
		StartTime:    time.Now(),
		Steps:        make([]*StepRecord, 0),
	}
}

// RecordStep appends the result of a step.
func (h *ExecutionHistory) RecordStep(name string, res *types.TaskResult) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := &StepRecord{Name: name}
	if res != nil {
		rec.Role = res.AgentName
		rec.Success = res.Success
		rec.DurationMs = res.DurationMs
		rec.ErrorMessage = res.ErrorMessage
	}
	h.Steps = append(h.Steps, rec)
}

// RecordUnresolved appends a step whose unit never produced a result.
func (h *ExecutionHistory) RecordUnresolved(name, role string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.Steps = append(h.Steps, &StepRecord{Name: name, Role: role, ErrorMessage: err.Error()})
}

// Complete marks the run finished. An empty errorMessage means success.
func (h *ExecutionHistory) Complete(errorMessage string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.EndTime = time.Now()
	h.Duration = h.EndTime.Sub(h.StartTime)
	if errorMessage != "" {
		h.Status = types.WorkflowStatusFailed
		h.ErrorMessage = errorMessage
	} else {
		h.Status = types.WorkflowStatusSuccess
	}
}

// Step returns the record for the named step.
func (h *ExecutionHistory) Step(name string) (*StepRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, s := range h.Steps {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// HistoryStore persists run histories.
type HistoryStore interface {
	Save(ctx context.Context, h *ExecutionHistory) error
	Get(ctx context.Context, executionID string) (*ExecutionHistory, error)
	// List returns the newest runs first. An empty workflowName matches all
	// runs; limit <= 0 means no limit.
	List(ctx context.Context, workflowName string, limit int) ([]*ExecutionHistory, error)
}

// MemoryHistoryStore keeps histories in process memory.
type MemoryHistoryStore struct {
	mu        sync.RWMutex
	histories map[string]*ExecutionHistory
}

// NewMemoryHistoryStore creates an empty in-memory store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{histories: make(map[string]*ExecutionHistory)}
}

// Save implements HistoryStore.
func (s *MemoryHistoryStore) Save(_ context.Context, h *ExecutionHistory) error {
	if h == nil || h.ExecutionID == "" {
		return errors.New("history must have an execution id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[h.ExecutionID] = h
	return nil
}

// Get implements HistoryStore.
func (s *MemoryHistoryStore) Get(_ context.Context, executionID string) (*ExecutionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.histories[executionID]
	if !ok {
		return nil, ErrHistoryNotFound
	}
	return h, nil
}

// List implements HistoryStore.
func (s *MemoryHistoryStore) List(_ context.Context, workflowName string, limit int) ([]*ExecutionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*ExecutionHistory
	for _, h := range s.histories {
		if workflowName == "" || h.WorkflowName == workflowName {
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b *ExecutionHistory) int {
		return b.StartTime.Compare(a.StartTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
