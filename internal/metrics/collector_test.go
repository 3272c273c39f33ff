package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.taskExecutionsTotal)
	assert.NotNil(t, collector.taskDuration)
	assert.NotNil(t, collector.tasksInFlight)
	assert.NotNil(t, collector.poolWait)
	assert.NotNil(t, collector.workflowRunsTotal)
	assert.NotNil(t, collector.workflowDuration)
}

func TestCollector_RecordTask(t *testing.T) {
	collector := NewCollectorWithRegisterer(nextTestNamespace(), prometheus.NewRegistry(), zap.NewNop())

	collector.RecordTask("coder", true, 100*time.Millisecond)
	collector.RecordTask("coder", true, 50*time.Millisecond)
	collector.RecordTask("coder", false, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.taskExecutionsTotal.WithLabelValues("coder", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.taskExecutionsTotal.WithLabelValues("coder", "failure")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.taskDuration))
}

func TestCollector_InFlight(t *testing.T) {
	collector := NewCollectorWithRegisterer(nextTestNamespace(), prometheus.NewRegistry(), zap.NewNop())

	collector.TaskStarted()
	collector.TaskStarted()
	collector.TaskFinished()

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.tasksInFlight))
}

func TestCollector_RecordWorkflow(t *testing.T) {
	collector := NewCollectorWithRegisterer(nextTestNamespace(), prometheus.NewRegistry(), zap.NewNop())

	collector.RecordWorkflow("release", "success", time.Second)
	collector.RecordWorkflow("release", "failed", time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.workflowRunsTotal.WithLabelValues("release", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.workflowRunsTotal.WithLabelValues("release", "failed")))
}

func TestCollector_CacheAndPool(t *testing.T) {
	collector := NewCollectorWithRegisterer(nextTestNamespace(), prometheus.NewRegistry(), zap.NewNop())

	collector.RecordCacheLookup(true)
	collector.RecordCacheLookup(false)
	collector.RecordCacheLookup(false)
	collector.ObservePoolWait(5 * time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(collector.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.poolWait))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var collector *Collector

	assert.NotPanics(t, func() {
		collector.RecordTask("coder", true, time.Second)
		collector.TaskStarted()
		collector.TaskFinished()
		collector.ObservePoolWait(time.Second)
		collector.RecordWorkflow("w", "success", time.Second)
		collector.RecordCacheLookup(true)
	})
}
