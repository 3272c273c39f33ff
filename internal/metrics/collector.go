// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// 任务指标
	taskExecutionsTotal *prometheus.CounterVec
	taskDuration        *prometheus.HistogramVec
	tasksInFlight       prometheus.Gauge

	// 工作池指标
	poolWait prometheus.Histogram

	// 工作流指标
	workflowRunsTotal *prometheus.CounterVec
	workflowDuration  *prometheus.HistogramVec

	// 缓存指标
	cacheLookups *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	return NewCollectorWithRegisterer(namespace, prometheus.DefaultRegisterer, logger)
}

// NewCollectorWithRegisterer 使用指定的 Registerer 创建指标收集器
func NewCollectorWithRegisterer(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// 任务指标
	c.taskExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_executions_total",
			Help:      "Total number of agent task executions",
		},
		[]string{"role", "status"},
	)

	c.taskDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Agent task execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"role"},
	)

	c.tasksInFlight = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tasks_in_flight",
			Help:      "Number of agent tasks currently executing",
		},
	)

	// 工作池指标
	c.poolWait = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pool_wait_seconds",
			Help:      "Time spent waiting for a free worker slot",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		},
	)

	// 工作流指标
	c.workflowRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Total number of workflow runs",
		},
		[]string{"workflow", "status"},
	)

	c.workflowDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"workflow"},
	)

	// 缓存指标
	c.cacheLookups = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_lookups_total",
			Help:      "Total number of result cache lookups",
		},
		[]string{"result"}, // result: hit, miss
	)

	return c
}

// =============================================================================
// 🎯 记录方法
// =============================================================================

// RecordTask 记录一次任务执行
func (c *Collector) RecordTask(role string, success bool, duration time.Duration) {
	if c == nil {
		return
	}
	c.taskExecutionsTotal.WithLabelValues(role, statusLabel(success)).Inc()
	c.taskDuration.WithLabelValues(role).Observe(duration.Seconds())
}

// TaskStarted 在途任务数 +1
func (c *Collector) TaskStarted() {
	if c == nil {
		return
	}
	c.tasksInFlight.Inc()
}

// TaskFinished 在途任务数 -1
func (c *Collector) TaskFinished() {
	if c == nil {
		return
	}
	c.tasksInFlight.Dec()
}

// ObservePoolWait 记录等待工作池槽位的耗时
func (c *Collector) ObservePoolWait(d time.Duration) {
	if c == nil {
		return
	}
	c.poolWait.Observe(d.Seconds())
}

// RecordWorkflow 记录一次工作流运行
func (c *Collector) RecordWorkflow(workflow, status string, duration time.Duration) {
	if c == nil {
		return
	}
	c.workflowRunsTotal.WithLabelValues(workflow, status).Inc()
	c.workflowDuration.WithLabelValues(workflow).Observe(duration.Seconds())
}

// RecordCacheLookup 记录结果缓存查询
func (c *Collector) RecordCacheLookup(hit bool) {
	if c == nil {
		return
	}
	if hit {
		c.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	c.cacheLookups.WithLabelValues("miss").Inc()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
