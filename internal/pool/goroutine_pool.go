// Package pool provides the bounded goroutine pool shared by task executions.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrPoolClosed = errors.New("pool is closed")
)

// Task represents a unit of work.
type Task func(ctx context.Context)

// GoroutinePool bounds the number of tasks running at once. Submit blocks
// while every worker slot is busy; tasks never queue inside the pool.
type GoroutinePool struct {
	slots  chan struct{}
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	activeCount atomic.Int32

	// Metrics
	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
	rejected  atomic.Int64

	panicHandler func(any)
}

// GoroutinePoolConfig configures the pool.
type GoroutinePoolConfig struct {
	MaxWorkers   int       `json:"max_workers" yaml:"max_workers"`
	PanicHandler func(any) `json:"-" yaml:"-"`
}

// DefaultGoroutinePoolConfig returns sensible defaults.
func DefaultGoroutinePoolConfig() GoroutinePoolConfig {
	return GoroutinePoolConfig{
		MaxWorkers: 100,
	}
}

// NewGoroutinePool creates a new goroutine pool. MaxWorkers <= 0 falls back
// to the default.
func NewGoroutinePool(config GoroutinePoolConfig) *GoroutinePool {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = DefaultGoroutinePoolConfig().MaxWorkers
	}
	return &GoroutinePool{
		slots:        make(chan struct{}, config.MaxWorkers),
		panicHandler: config.PanicHandler,
	}
}

// Submit waits for a free worker slot and runs task on it. It returns the
// time spent waiting for the slot. The wait ends early with ctx.Err() when
// ctx is done, or ErrPoolClosed once Close has been called.
func (p *GoroutinePool) Submit(ctx context.Context, task Task) (time.Duration, error) {
	if p.isClosed() {
		p.rejected.Add(1)
		return 0, ErrPoolClosed
	}

	start := time.Now()
	select {
	case p.slots <- struct{}{}:
	case <-ctx.Done():
		p.rejected.Add(1)
		return time.Since(start), ctx.Err()
	}
	waited := time.Since(start)

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		<-p.slots
		p.rejected.Add(1)
		return waited, ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	p.submitted.Add(1)
	go p.run(ctx, task)
	return waited, nil
}

func (p *GoroutinePool) run(ctx context.Context, task Task) {
	defer p.wg.Done()
	defer func() { <-p.slots }()

	p.activeCount.Add(1)
	defer p.activeCount.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			p.panicked.Add(1)
			if p.panicHandler != nil {
				p.panicHandler(fmt.Errorf("task panicked: %v", r))
			}
			return
		}
		p.completed.Add(1)
	}()

	task(ctx)
}

func (p *GoroutinePool) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Close stops accepting tasks and waits for running ones to finish.
func (p *GoroutinePool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.wg.Wait()
}

// Capacity returns the maximum number of concurrently running tasks.
func (p *GoroutinePool) Capacity() int {
	return cap(p.slots)
}

// Stats returns pool statistics.
func (p *GoroutinePool) Stats() GoroutinePoolStats {
	return GoroutinePoolStats{
		Capacity:  cap(p.slots),
		Active:    int(p.activeCount.Load()),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// GoroutinePoolStats contains pool statistics.
type GoroutinePoolStats struct {
	Capacity  int   `json:"capacity"`
	Active    int   `json:"active"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Panicked  int64 `json:"panicked"`
	Rejected  int64 `json:"rejected"`
}
