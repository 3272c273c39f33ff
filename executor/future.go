package executor

import (
	"context"
	"sync"

	"github.com/BaSui01/taskflow/types"
)

// Future is the pending outcome of one dispatched task. It resolves
// exactly once.
type Future struct {
	done   chan struct{}
	once   sync.Once
	result *types.TaskResult
	err    error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// ResolvedFuture returns a future that is already complete.
func ResolvedFuture(result *types.TaskResult, err error) *Future {
	f := newFuture()
	f.resolve(result, err)
	return f
}

func (f *Future) resolve(result *types.TaskResult, err error) {
	f.once.Do(func() {
		f.result = result
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future has resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future resolves or ctx is done. A non-nil error
// means the task never produced a result (pool closed, context cancelled
// before a worker slot was free); agent failures arrive as unsuccessful
// results with a nil error.
func (f *Future) Await(ctx context.Context) (*types.TaskResult, error) {
	select {
	case <-f.done:
		return f.result, f.err
	default:
	}

	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
