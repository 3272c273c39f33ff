package executor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/BaSui01/taskflow/agent"
	"github.com/BaSui01/taskflow/internal/ctxkeys"
	"github.com/BaSui01/taskflow/internal/metrics"
	"github.com/BaSui01/taskflow/internal/pool"
	"github.com/BaSui01/taskflow/types"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/BaSui01/taskflow/executor"

// ResultCache memoizes successful results of identical requests.
type ResultCache interface {
	Get(ctx context.Context, req *types.TaskRequest) (*types.TaskResult, bool)
	Put(ctx context.Context, req *types.TaskRequest, res *types.TaskResult)
}

// Executor dispatches agent tasks onto a bounded worker pool.
type Executor struct {
	lookup     agent.Lookup
	pool       *pool.GoroutinePool
	ownsPool   bool
	maxWorkers int

	logger      *zap.Logger
	metrics     *metrics.Collector
	tracer      trace.Tracer
	cache       ResultCache
	limiter     *rate.Limiter
	taskTimeout time.Duration
}

// New creates an Executor resolving roles through lookup.
func New(lookup agent.Lookup, opts ...Option) *Executor {
	e := &Executor{lookup: lookup}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.With(zap.String("component", "executor"))

	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}

	if e.pool == nil {
		cfg := pool.DefaultGoroutinePoolConfig()
		if e.maxWorkers > 0 {
			cfg.MaxWorkers = e.maxWorkers
		}
		logger := e.logger
		cfg.PanicHandler = func(v any) {
			logger.Error("worker panic escaped task containment", zap.Any("panic", v))
		}
		e.pool = pool.NewGoroutinePool(cfg)
		e.ownsPool = true
	}

	return e
}

// Close releases the worker pool if the executor created it. In-flight
// tasks are allowed to finish.
func (e *Executor) Close() {
	if e.ownsPool {
		e.pool.Close()
	}
}

// PoolStats reports the state of the underlying worker pool.
func (e *Executor) PoolStats() pool.GoroutinePoolStats {
	return e.pool.Stats()
}

// ExecuteParallel runs every task concurrently, bounded only by the pool.
func (e *Executor) ExecuteParallel(ctx context.Context, tasks []*types.TaskRequest) []*types.TaskResult {
	futures := make([]*Future, len(tasks))
	for i, req := range tasks {
		futures[i] = e.Submit(ctx, req)
	}
	return e.collect(ctx, tasks, futures)
}

// ExecuteParallelWithLimit runs tasks with at most limit in flight at once.
// A limit <= 0 behaves like ExecuteParallel.
func (e *Executor) ExecuteParallelWithLimit(ctx context.Context, tasks []*types.TaskRequest, limit int) []*types.TaskResult {
	if limit <= 0 {
		return e.ExecuteParallel(ctx, tasks)
	}

	sem := semaphore.NewWeighted(int64(limit))
	futures := make([]*Future, len(tasks))
	for i, req := range tasks {
		if err := sem.Acquire(ctx, 1); err != nil {
			futures[i] = ResolvedFuture(nil, err)
			continue
		}
		futures[i] = e.dispatch(ctx, req, func() { sem.Release(1) })
	}
	return e.collect(ctx, tasks, futures)
}

// ExecuteBatched runs tasks in consecutive chunks of batchSize; a chunk
// starts only after the previous one has fully completed. A batchSize <= 0
// runs everything as one batch.
func (e *Executor) ExecuteBatched(ctx context.Context, tasks []*types.TaskRequest, batchSize int) []*types.TaskResult {
	if batchSize <= 0 || batchSize >= len(tasks) {
		return e.ExecuteParallel(ctx, tasks)
	}

	results := make([]*types.TaskResult, 0, len(tasks))
	for start := 0; start < len(tasks); start += batchSize {
		end := min(start+batchSize, len(tasks))
		e.logger.Debug("executing batch",
			zap.Int("from", start),
			zap.Int("to", end),
			zap.Int("total", len(tasks)),
		)
		results = append(results, e.ExecuteParallel(ctx, tasks[start:end])...)
	}
	return results
}

// ExecuteAndAggregate runs tasks in parallel and folds the results with
// reducer. A nil reducer yields "".
func (e *Executor) ExecuteAndAggregate(ctx context.Context, tasks []*types.TaskRequest, reducer func([]*types.TaskResult) string) string {
	results := e.ExecuteParallel(ctx, tasks)
	if reducer == nil {
		return ""
	}
	return reducer(results)
}

// Submit dispatches one task asynchronously. It blocks only while waiting
// for a rate-limit token and then for a free worker slot.
func (e *Executor) Submit(ctx context.Context, req *types.TaskRequest) *Future {
	return e.dispatch(ctx, req, nil)
}

// dispatch runs req on the pool and calls onDone once the unit has
// resolved, whether or not it ever ran.
func (e *Executor) dispatch(ctx context.Context, req *types.TaskRequest, onDone func()) *Future {
	f := newFuture()
	finish := func(res *types.TaskResult, err error) {
		f.resolve(res, err)
		if onDone != nil {
			onDone()
		}
	}

	// Rate-limited tasks wait for their token before taking a worker slot.
	if e.limiter != nil && req != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			finish(types.NewFailureResult(roleOf(req), taskOf(req), "Execution failed: "+err.Error(), 0), nil)
			return f
		}
	}

	waited, err := e.pool.Submit(ctx, func(taskCtx context.Context) {
		defer func() {
			if r := recover(); r != nil {
				finish(nil, fmt.Errorf("task panicked: %v", r))
			}
		}()
		finish(e.execute(taskCtx, req, false), nil)
	})
	e.metrics.ObservePoolWait(waited)

	if err != nil {
		e.logger.Warn("task not dispatched",
			zap.String("role", roleOf(req)),
			zap.Error(err),
		)
		if errors.Is(err, pool.ErrPoolClosed) {
			err = types.NewError(types.ErrPoolClosed, "worker pool is closed").WithCause(err)
		}
		finish(nil, err)
	}
	return f
}

// collect awaits futures in input order. A unit that never produced a
// result is reported as a failed TaskResult.
func (e *Executor) collect(ctx context.Context, tasks []*types.TaskRequest, futures []*Future) []*types.TaskResult {
	results := make([]*types.TaskResult, len(futures))
	for i, f := range futures {
		res, err := f.Await(ctx)
		if err != nil || res == nil {
			if err == nil {
				err = errors.New("no result")
			}
			req := tasks[i]
			res = types.NewFailureResult(roleOf(req), taskOf(req), "Execution failed: "+err.Error(), 0)
		}
		results[i] = res
	}
	return results
}

// ExecuteTask runs one task synchronously on the calling goroutine. It
// never returns nil.
func (e *Executor) ExecuteTask(ctx context.Context, req *types.TaskRequest) *types.TaskResult {
	return e.execute(ctx, req, true)
}

// execute runs req, waiting on the rate limiter first when waitLimiter is
// set. Pooled tasks have already waited in dispatch.
func (e *Executor) execute(ctx context.Context, req *types.TaskRequest, waitLimiter bool) *types.TaskResult {
	if req == nil {
		return types.NewFailureResult("", "", "Execution failed: nil task request", 0)
	}

	attrs := []attribute.KeyValue{attribute.String("taskflow.role", req.Role)}
	logger := e.logger.With(zap.String("role", req.Role))
	if runID, ok := ctxkeys.RunID(ctx); ok {
		attrs = append(attrs, attribute.String("taskflow.execution_id", runID))
		logger = logger.With(zap.String("execution_id", runID))
	}
	if step, ok := ctxkeys.StepName(ctx); ok {
		attrs = append(attrs, attribute.String("taskflow.step", step))
		logger = logger.With(zap.String("step", step))
	}

	ctx, span := e.tracer.Start(ctx, "taskflow.task", trace.WithAttributes(attrs...))
	defer span.End()

	logger.Debug("executing task")

	res := e.run(ctx, req, waitLimiter)

	e.metrics.RecordTask(req.Role, res.Success, res.Duration())
	span.SetAttributes(
		attribute.Bool("taskflow.success", res.Success),
		attribute.Int64("taskflow.duration_ms", res.DurationMs),
	)
	if res.Success {
		span.SetStatus(codes.Ok, "")
		logger.Debug("task completed", zap.Int64("duration_ms", res.DurationMs))
	} else {
		span.SetStatus(codes.Error, res.ErrorMessage)
		logger.Warn("task failed", zap.String("error", res.ErrorMessage))
	}
	return res
}

func (e *Executor) run(ctx context.Context, req *types.TaskRequest, waitLimiter bool) *types.TaskResult {
	start := time.Now()
	fail := func(msg string) *types.TaskResult {
		return types.NewFailureResult(req.Role, req.Task, msg, time.Since(start))
	}

	if err := ctx.Err(); err != nil {
		return fail("Execution failed: " + err.Error())
	}

	a, ok := e.lookup.Find(req.Role)
	if !ok || a == nil {
		e.logger.Debug("agent not found",
			zap.String("code", string(types.ErrAgentNotFound)),
			zap.String("role", req.Role),
		)
		return fail("Agent not found: " + req.Role)
	}

	if e.cache != nil {
		if hit, ok := e.cache.Get(ctx, req); ok {
			e.metrics.RecordCacheLookup(true)
			return hit
		}
		e.metrics.RecordCacheLookup(false)
	}

	if waitLimiter && e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return fail("Execution failed: " + err.Error())
		}
	}

	callCtx := ctx
	if e.taskTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.taskTimeout)
		defer cancel()
	}

	res, err := e.invoke(callCtx, a, req)
	if err != nil {
		e.logger.Debug("agent execution failed",
			zap.String("code", string(types.ErrAgentExecutionFailed)),
			zap.String("role", req.Role),
			zap.Error(err),
		)
		return fail("Execution failed: " + err.Error())
	}
	if res == nil {
		return fail("Execution failed: agent returned no result")
	}

	res = res.Normalize(req, time.Since(start))
	if e.cache != nil && res.Success {
		e.cache.Put(ctx, req, res)
	}
	return res
}

// invoke calls the agent and turns a panic into an error.
func (e *Executor) invoke(ctx context.Context, a agent.Agent, req *types.TaskRequest) (res *types.TaskResult, err error) {
	e.metrics.TaskStarted()
	defer e.metrics.TaskFinished()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("agent panicked",
				zap.String("role", req.Role),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	return a.ExecuteTask(ctx, req)
}

func roleOf(req *types.TaskRequest) string {
	if req == nil {
		return ""
	}
	return req.Role
}

func taskOf(req *types.TaskRequest) string {
	if req == nil {
		return ""
	}
	return req.Task
}
