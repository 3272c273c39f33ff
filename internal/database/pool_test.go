package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// =============================================================================
// 🧪 Pool 测试
// =============================================================================

func newMockPool(t *testing.T, cfg PoolConfig) (*Pool, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: mockDB}), &gorm.Config{})
	require.NoError(t, err)

	p, err := NewPool(gormDB, cfg, zap.NewNop())
	require.NoError(t, err)
	return p, mock
}

func retryConfig(attempts int) PoolConfig {
	return PoolConfig{MaxOpenConns: 4, MaxIdleConns: 2, TxAttempts: attempts, TxBackoff: time.Millisecond}
}

func TestNewPool(t *testing.T) {
	p, _ := newMockPool(t, PoolConfig{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Hour})

	assert.NotNil(t, p.DB())
	assert.Equal(t, 10, p.Stats().MaxOpenConnections)
	assert.Equal(t, 1, p.cfg.TxAttempts, "zero attempts means a single try")
	assert.NoError(t, p.Ping(context.Background()))
}

func TestNewPool_NilDB(t *testing.T) {
	_, err := NewPool(nil, DefaultPoolConfig(), nil)
	assert.Error(t, err)
}

func TestPool_TransactCommitAndRollback(t *testing.T) {
	p, mock := newMockPool(t, retryConfig(1))

	mock.ExpectBegin()
	mock.ExpectCommit()
	require.NoError(t, p.Transact(context.Background(), func(*gorm.DB) error { return nil }))

	mock.ExpectBegin()
	mock.ExpectRollback()
	err := p.Transact(context.Background(), func(*gorm.DB) error { return assert.AnError })
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_TransactRetriesTransientErrors(t *testing.T) {
	p, mock := newMockPool(t, retryConfig(3))

	mock.ExpectBegin()
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectCommit()

	attempts := 0
	err := p.Transact(context.Background(), func(*gorm.DB) error {
		attempts++
		if attempts == 1 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPool_TransactGivesUp(t *testing.T) {
	p, mock := newMockPool(t, retryConfig(2))
	for range 2 {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	attempts := 0
	err := p.Transact(context.Background(), func(*gorm.DB) error {
		attempts++
		return errors.New("Deadlock found when trying to get lock")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 2, attempts)
}

func TestPool_TransactDoesNotRetryPermanentErrors(t *testing.T) {
	p, mock := newMockPool(t, retryConfig(3))
	mock.ExpectBegin()
	mock.ExpectRollback()

	attempts := 0
	err := p.Transact(context.Background(), func(*gorm.DB) error {
		attempts++
		return errors.New("unique constraint violated")
	})
	require.Error(t, err)
	assert.Equal(t, "unique constraint violated", err.Error())
	assert.Equal(t, 1, attempts)
}

func TestPool_TransactStopsOnCancel(t *testing.T) {
	p, mock := newMockPool(t, PoolConfig{MaxOpenConns: 4, MaxIdleConns: 2, TxAttempts: 5, TxBackoff: time.Hour})
	mock.ExpectBegin()
	mock.ExpectRollback()

	ctx, cancel := context.WithCancel(context.Background())
	err := p.Transact(ctx, func(*gorm.DB) error {
		cancel()
		return errors.New("database is locked")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPool_Close(t *testing.T) {
	p, mock := newMockPool(t, PoolConfig{MaxOpenConns: 4, MaxIdleConns: 2, HealthCheckInterval: time.Hour})

	mock.ExpectClose()
	require.NoError(t, p.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
	require.NoError(t, p.Close())

	assert.ErrorIs(t, p.Ping(context.Background()), ErrPoolClosed)
	assert.ErrorIs(t, p.Transact(context.Background(), func(*gorm.DB) error { return nil }), ErrPoolClosed)
}

func TestTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{ErrPoolClosed, false},
		{driver.ErrBadConn, true},
		{fmt.Errorf("exec: %w", driver.ErrBadConn), true},
		{errors.New("ERROR: could not serialize access (SQLSTATE 40001)"), true},
		{errors.New("Error 1205: Lock wait timeout exceeded"), true},
		{errors.New("database is locked"), true},
		{sql.ErrNoRows, false},
		{errors.New("syntax error"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, transient(tt.err), "%v", tt.err)
	}
}

func TestPoolConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  PoolConfig
		wantErr bool
	}{
		{"defaults", DefaultPoolConfig(), false},
		{"zero open", PoolConfig{MaxOpenConns: 0, MaxIdleConns: 5}, true},
		{"zero idle", PoolConfig{MaxOpenConns: 10, MaxIdleConns: 0}, true},
		{"idle exceeds open", PoolConfig{MaxOpenConns: 5, MaxIdleConns: 10}, true},
		{"negative attempts", PoolConfig{MaxOpenConns: 5, MaxIdleConns: 5, TxAttempts: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
