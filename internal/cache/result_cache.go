package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/BaSui01/taskflow/types"
	"go.uber.org/zap"
)

// =============================================================================
// 🗂️ TaskResult 缓存
// =============================================================================

// Store 是 ResultCache 依赖的最小键值接口，Manager 实现了它
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
}

// ResultCache 按请求内容记忆成功的 TaskResult
type ResultCache struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewResultCache 创建结果缓存，ttl 为 0 时使用 Store 的默认过期时间
func NewResultCache(store Store, ttl time.Duration, logger *zap.Logger) *ResultCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultCache{
		store:  store,
		ttl:    ttl,
		logger: logger.With(zap.String("component", "result_cache")),
	}
}

// Key 计算请求的缓存键：sha256(role, task, 按键排序的上下文 JSON)。
// 上下文无法序列化时返回 false，此类请求不参与缓存。
func Key(req *types.TaskRequest) (string, bool) {
	if req == nil {
		return "", false
	}
	// encoding/json 对 map 键排序，序列化结果是确定的
	ctxJSON, err := json.Marshal(req.Context)
	if err != nil {
		return "", false
	}

	h := sha256.New()
	h.Write([]byte(req.Role))
	h.Write([]byte{0})
	h.Write([]byte(req.Task))
	h.Write([]byte{0})
	h.Write(ctxJSON)

	return "result:" + hex.EncodeToString(h.Sum(nil)), true
}

// Get 查找请求的缓存结果，命中时返回带 cached=true 标记的副本
func (c *ResultCache) Get(ctx context.Context, req *types.TaskRequest) (*types.TaskResult, bool) {
	key, ok := Key(req)
	if !ok {
		return nil, false
	}

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !IsCacheMiss(err) {
			c.logger.Warn("result cache lookup failed", zap.String("role", req.Role), zap.Error(err))
		}
		return nil, false
	}

	var res types.TaskResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		c.logger.Warn("discarding corrupt cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !res.Success {
		return nil, false
	}

	return res.WithMetadata("cached", true), true
}

// Put 存储成功结果，失败结果被忽略
func (c *ResultCache) Put(ctx context.Context, req *types.TaskRequest, res *types.TaskResult) {
	if res == nil || !res.Success {
		return
	}
	key, ok := Key(req)
	if !ok {
		return
	}

	data, err := json.Marshal(res)
	if err != nil {
		c.logger.Warn("result not cacheable", zap.String("role", req.Role), zap.Error(err))
		return
	}

	if err := c.store.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn("result cache store failed", zap.String("role", req.Role), zap.Error(err))
	}
}
