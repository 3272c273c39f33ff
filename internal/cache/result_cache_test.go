package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BaSui01/taskflow/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestKey_Deterministic(t *testing.T) {
	a := types.NewTaskRequest("coder", "write it", map[string]any{"b": 2, "a": "x"})
	b := types.NewTaskRequest("coder", "write it", map[string]any{"a": "x", "b": 2})

	ka, ok := Key(a)
	require.True(t, ok)
	kb, ok := Key(b)
	require.True(t, ok)
	assert.Equal(t, ka, kb)
}

func TestKey_Distinguishes(t *testing.T) {
	base := types.NewTaskRequest("coder", "task", nil)
	baseKey, _ := Key(base)

	tests := []struct {
		name string
		req  *types.TaskRequest
	}{
		{"role", types.NewTaskRequest("reviewer", "task", nil)},
		{"task", types.NewTaskRequest("coder", "task2", nil)},
		{"context", types.NewTaskRequest("coder", "task", map[string]any{"k": "v"})},
		// 分隔符避免 role/task 拼接歧义
		{"boundary", types.NewTaskRequest("codert", "ask", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, ok := Key(tt.req)
			require.True(t, ok)
			assert.NotEqual(t, baseKey, k)
		})
	}
}

func TestKey_Unmarshalable(t *testing.T) {
	_, ok := Key(types.NewTaskRequest("r", "t", map[string]any{"ch": make(chan int)}))
	assert.False(t, ok)

	_, ok = Key(nil)
	assert.False(t, ok)
}

func TestResultCache_RoundTrip(t *testing.T) {
	_, manager := setupTestRedis(t)
	rc := NewResultCache(manager, time.Minute, zap.NewNop())
	ctx := context.Background()

	req := types.NewTaskRequest("writer", "draft", map[string]any{"tone": "dry"})

	_, hit := rc.Get(ctx, req)
	assert.False(t, hit)

	rc.Put(ctx, req, types.NewSuccessResult("writer", "draft", "hello", 42*time.Millisecond))

	got, hit := rc.Get(ctx, req)
	require.True(t, hit)
	assert.True(t, got.Success)
	assert.Equal(t, "hello", got.Output)
	assert.Equal(t, "writer", got.AgentName)
	assert.Equal(t, int64(42), got.DurationMs)
	assert.Equal(t, true, got.Metadata["cached"])
}

func TestResultCache_SkipsFailures(t *testing.T) {
	_, manager := setupTestRedis(t)
	rc := NewResultCache(manager, 0, nil)
	ctx := context.Background()

	req := types.NewTaskRequest("writer", "draft", nil)
	rc.Put(ctx, req, types.NewFailureResult("writer", "draft", "boom", 0))
	rc.Put(ctx, req, nil)

	_, hit := rc.Get(ctx, req)
	assert.False(t, hit)
}

func TestResultCache_CorruptEntry(t *testing.T) {
	_, manager := setupTestRedis(t)
	rc := NewResultCache(manager, 0, nil)
	ctx := context.Background()

	req := types.NewTaskRequest("writer", "draft", nil)
	key, _ := Key(req)
	require.NoError(t, manager.Set(ctx, key, "{not json", 0))

	_, hit := rc.Get(ctx, req)
	assert.False(t, hit)
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("connection reset")
}

func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection reset")
}

func TestResultCache_StoreErrorsAreMisses(t *testing.T) {
	rc := NewResultCache(failingStore{}, 0, zap.NewNop())
	ctx := context.Background()
	req := types.NewTaskRequest("writer", "draft", nil)

	assert.NotPanics(t, func() {
		rc.Put(ctx, req, types.NewSuccessResult("writer", "draft", "x", 0))
	})
	_, hit := rc.Get(ctx, req)
	assert.False(t, hit)
}
