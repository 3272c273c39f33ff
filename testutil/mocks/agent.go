// =============================================================================
// 🤖 MockAgent - Agent 模拟实现
// =============================================================================
// 用于测试的 Agent 模拟，支持固定输出、错误注入、panic、延迟与闸门
//
// 使用方法:
//
//	a := mocks.NewMockAgent("coder").WithOutput("done")
//	registry.Register("coder", a)
//
// =============================================================================
package mocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/taskflow/types"
)

// =============================================================================
// 📈 ConcurrencyTracker
// =============================================================================

// ConcurrencyTracker 统计同时执行中的调用数及其峰值，可在多个 Agent 间共享
type ConcurrencyTracker struct {
	active atomic.Int32
	peak   atomic.Int32
}

// NewConcurrencyTracker 创建并发统计器
func NewConcurrencyTracker() *ConcurrencyTracker {
	return &ConcurrencyTracker{}
}

func (c *ConcurrencyTracker) enter() {
	n := c.active.Add(1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (c *ConcurrencyTracker) leave() {
	c.active.Add(-1)
}

// Active 返回当前执行中的调用数
func (c *ConcurrencyTracker) Active() int {
	return int(c.active.Load())
}

// Peak 返回观察到的最大并发数
func (c *ConcurrencyTracker) Peak() int {
	return int(c.peak.Load())
}

// =============================================================================
// 🎯 MockAgent 结构
// =============================================================================

// MockAgent 是 agent.Agent 的模拟实现
type MockAgent struct {
	mu sync.Mutex

	name       string
	output     string
	outputFunc func(req *types.TaskRequest) string
	err        error
	panicValue any
	result     *types.TaskResult
	nilResult  bool
	delay      time.Duration
	gate       <-chan struct{}

	tracker *ConcurrencyTracker
	own     *ConcurrencyTracker
	calls   []*types.TaskRequest
}

// NewMockAgent 创建新的 MockAgent，默认输出为 "<name>: <task>"
func NewMockAgent(name string) *MockAgent {
	return &MockAgent{
		name: name,
		own:  NewConcurrencyTracker(),
	}
}

// WithOutput 设置固定输出
func (m *MockAgent) WithOutput(output string) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = output
	return m
}

// WithOutputFunc 按请求计算输出
func (m *MockAgent) WithOutputFunc(fn func(req *types.TaskRequest) string) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outputFunc = fn
	return m
}

// WithError 设置返回错误
func (m *MockAgent) WithError(err error) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithPanic 执行时以 v panic
func (m *MockAgent) WithPanic(v any) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicValue = v
	return m
}

// WithResult 原样返回给定结果
func (m *MockAgent) WithResult(res *types.TaskResult) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = res
	return m
}

// WithNilResult 返回 (nil, nil)
func (m *MockAgent) WithNilResult() *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nilResult = true
	return m
}

// WithDelay 设置执行延迟，上下文取消时提前返回
func (m *MockAgent) WithDelay(d time.Duration) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithGate 执行前阻塞直到 gate 关闭或上下文取消
func (m *MockAgent) WithGate(gate <-chan struct{}) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
	return m
}

// WithTracker 在共享的 ConcurrencyTracker 上统计并发
func (m *MockAgent) WithTracker(t *ConcurrencyTracker) *MockAgent {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker = t
	return m
}

// =============================================================================
// 🔧 Agent 接口实现
// =============================================================================

// ExecuteTask 实现 agent.Agent
func (m *MockAgent) ExecuteTask(ctx context.Context, req *types.TaskRequest) (*types.TaskResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	output, outputFunc := m.output, m.outputFunc
	err, panicValue := m.err, m.panicValue
	result, nilResult := m.result, m.nilResult
	delay, gate, tracker := m.delay, m.gate, m.tracker
	m.mu.Unlock()

	m.own.enter()
	defer m.own.leave()
	if tracker != nil {
		tracker.enter()
		defer tracker.leave()
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if panicValue != nil {
		panic(panicValue)
	}
	if err != nil {
		return nil, err
	}
	if nilResult {
		return nil, nil
	}
	if result != nil {
		return result.Clone(), nil
	}

	switch {
	case outputFunc != nil:
		output = outputFunc(req)
	case output == "":
		output = m.name + ": " + req.Task
	}
	return types.NewSuccessResult(m.name, req.Task, output, 0), nil
}

// =============================================================================
// 📊 调用记录
// =============================================================================

// Calls 返回所有调用的请求
func (m *MockAgent) Calls() []*types.TaskRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*types.TaskRequest, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数
func (m *MockAgent) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall 返回最后一次调用的请求
func (m *MockAgent) LastCall() *types.TaskRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1]
}

// PeakConcurrency 返回此 Agent 的最大并发调用数
func (m *MockAgent) PeakConcurrency() int {
	return m.own.Peak()
}
