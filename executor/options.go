package executor

import (
	"time"

	"github.com/BaSui01/taskflow/internal/metrics"
	"github.com/BaSui01/taskflow/internal/pool"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Option configures an Executor.
type Option func(*Executor)

// WithPool shares an existing worker pool. The executor does not close it.
func WithPool(p *pool.GoroutinePool) Option {
	return func(e *Executor) {
		e.pool = p
	}
}

// WithMaxWorkers sets the size of the pool the executor creates for
// itself. Ignored when WithPool is used.
func WithMaxWorkers(n int) Option {
	return func(e *Executor) {
		e.maxWorkers = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithMetrics records task metrics on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Executor) {
		e.metrics = c
	}
}

// WithTracer opens a span per task on t.
func WithTracer(t trace.Tracer) Option {
	return func(e *Executor) {
		e.tracer = t
	}
}

// WithResultCache memoizes successful results.
func WithResultCache(c ResultCache) Option {
	return func(e *Executor) {
		e.cache = c
	}
}

// WithRateLimit caps agent invocations at rps per second with the given
// burst. rps <= 0 disables the limit. Tasks dispatched through the pool wait
// for their token before taking a worker slot, so every dispatched task
// consumes a token, cache hits and unknown roles included.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Executor) {
		if rps <= 0 {
			e.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithTaskTimeout bounds every agent invocation. d <= 0 means no timeout.
func WithTaskTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.taskTimeout = d
	}
}
