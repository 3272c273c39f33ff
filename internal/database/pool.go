package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// =============================================================================
// 🗄️ 历史库连接池
// =============================================================================

// ErrPoolClosed 连接池已关闭
var ErrPoolClosed = errors.New("pool is closed")

// PoolConfig 连接池与事务重试配置
type PoolConfig struct {
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`

	// 探活间隔，0 表示不探活
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`

	// 事务最多尝试次数（含首次）
	TxAttempts int `yaml:"tx_attempts" json:"tx_attempts"`
	// 首次重试前的等待，之后每次翻倍
	TxBackoff time.Duration `yaml:"tx_backoff" json:"tx_backoff"`
}

// DefaultPoolConfig 返回默认配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:        10,
		MaxIdleConns:        5,
		ConnMaxLifetime:     time.Hour,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
		TxAttempts:          3,
		TxBackoff:           100 * time.Millisecond,
	}
}

// Validate 校验配置
func (c PoolConfig) Validate() error {
	switch {
	case c.MaxOpenConns <= 0:
		return fmt.Errorf("max_open_conns must be positive, got %d", c.MaxOpenConns)
	case c.MaxIdleConns <= 0:
		return fmt.Errorf("max_idle_conns must be positive, got %d", c.MaxIdleConns)
	case c.MaxIdleConns > c.MaxOpenConns:
		return fmt.Errorf("max_idle_conns (%d) exceeds max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	case c.TxAttempts < 0:
		return fmt.Errorf("tx_attempts must not be negative, got %d", c.TxAttempts)
	}
	return nil
}

// Pool 持有历史库的 GORM 实例，负责连接参数、探活与带重试的事务
type Pool struct {
	db     *gorm.DB
	sqlDB  *sql.DB
	cfg    PoolConfig
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	stop   chan struct{}
	done   chan struct{}
}

// NewPool 包装 db 并应用连接参数
func NewPool(db *gorm.DB, cfg PoolConfig, logger *zap.Logger) (*Pool, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TxAttempts == 0 {
		cfg.TxAttempts = 1
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	p := &Pool{
		db:     db,
		sqlDB:  sqlDB,
		cfg:    cfg,
		logger: logger.With(zap.String("component", "history_db")),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	if cfg.HealthCheckInterval > 0 {
		go p.monitor(cfg.HealthCheckInterval)
	} else {
		close(p.done)
	}

	p.logger.Debug("history database ready",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("tx_attempts", cfg.TxAttempts),
	)
	return p, nil
}

// DB 返回 GORM 实例
func (p *Pool) DB() *gorm.DB {
	return p.db
}

// Stats 返回底层 sql.DB 的统计
func (p *Pool) Stats() sql.DBStats {
	return p.sqlDB.Stats()
}

// Ping 探活
func (p *Pool) Ping(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	return p.sqlDB.PingContext(ctx)
}

// Close 停止探活并关闭连接，可重复调用
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.stop)
	p.mu.Unlock()

	<-p.done
	return p.sqlDB.Close()
}

func (p *Pool) monitor(every time.Duration) {
	defer close(p.done)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), every)
			err := p.Ping(ctx)
			cancel()
			if err != nil && !errors.Is(err, ErrPoolClosed) {
				p.logger.Warn("history database unreachable", zap.Error(err))
				continue
			}
			s := p.Stats()
			p.logger.Debug("history database healthy",
				zap.Int("open", s.OpenConnections),
				zap.Int("in_use", s.InUse),
			)
		}
	}
}

// =============================================================================
// 🔄 事务
// =============================================================================

// Transact 在事务中执行 fn。锁冲突、序列化失败、断连等瞬时错误按
// TxAttempts 与 TxBackoff 重试；其余错误立即返回。
func (p *Pool) Transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	backoff := p.cfg.TxBackoff
	var err error
	for attempt := 1; ; attempt++ {
		if err = p.transactOnce(ctx, fn); err == nil {
			return nil
		}
		if !transient(err) || attempt >= p.cfg.TxAttempts {
			break
		}

		p.logger.Warn("history transaction failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	if p.cfg.TxAttempts > 1 && transient(err) {
		return fmt.Errorf("transaction failed after %d attempts: %w", p.cfg.TxAttempts, err)
	}
	return err
}

func (p *Pool) transactOnce(ctx context.Context, fn func(tx *gorm.DB) error) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPoolClosed
	}
	return p.db.WithContext(ctx).Transaction(fn)
}

// transientMarkers 各驱动瞬时错误的特征文本（小写）
var transientMarkers = []string{
	"deadlock",
	"40001",              // postgres serialization_failure
	"lock wait timeout",  // mysql 1205
	"database is locked", // sqlite 写锁竞争
	"connection reset",
	"broken pipe",
	"bad connection",
}

func transient(err error) bool {
	if err == nil || errors.Is(err, ErrPoolClosed) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
