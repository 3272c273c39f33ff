package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/taskflow/internal/database"
	"github.com/BaSui01/taskflow/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// runRow is the workflow_runs table.
type runRow struct {
	ExecutionID  string    `gorm:"primaryKey;size:64"`
	WorkflowName string    `gorm:"index;size:255"`
	Mode         string    `gorm:"size:16"`
	Status       string    `gorm:"size:16"`
	StartTime    time.Time `gorm:"index"`
	EndTime      time.Time
	DurationMs   int64
	ErrorMessage string    `gorm:"type:text"`
	Steps        []stepRow `gorm:"foreignKey:ExecutionID;references:ExecutionID"`
}

func (runRow) TableName() string { return "workflow_runs" }

// stepRow is the workflow_step_runs table.
type stepRow struct {
	ID           uint   `gorm:"primaryKey"`
	ExecutionID  string `gorm:"index;size:64"`
	Position     int
	Name         string `gorm:"size:255"`
	Role         string `gorm:"size:255"`
	Success      bool
	DurationMs   int64
	ErrorMessage string `gorm:"type:text"`
}

func (stepRow) TableName() string { return "workflow_step_runs" }

// GormHistoryStore persists run histories through GORM.
type GormHistoryStore struct {
	pool   *database.Pool
	logger *zap.Logger
}

// NewGormHistoryStore migrates the history tables and returns a store.
func NewGormHistoryStore(ctx context.Context, pool *database.Pool, logger *zap.Logger) (*GormHistoryStore, error) {
	if pool == nil {
		return nil, errors.New("database pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := pool.DB().WithContext(ctx).AutoMigrate(&runRow{}, &stepRow{}); err != nil {
		return nil, fmt.Errorf("migrate history tables: %w", err)
	}
	return &GormHistoryStore{
		pool:   pool,
		logger: logger.With(zap.String("component", "history_store")),
	}, nil
}

// Save implements HistoryStore. Saving the same execution id again
// replaces the stored run.
func (s *GormHistoryStore) Save(ctx context.Context, h *ExecutionHistory) error {
	if h == nil || h.ExecutionID == "" {
		return errors.New("history must have an execution id")
	}
	run := toRunRow(h)

	return s.pool.Transact(ctx, func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(&run).Error; err != nil {
			return fmt.Errorf("save run %s: %w", run.ExecutionID, err)
		}
		if err := tx.Where("execution_id = ?", run.ExecutionID).Delete(&stepRow{}).Error; err != nil {
			return fmt.Errorf("clear steps of %s: %w", run.ExecutionID, err)
		}
		if len(run.Steps) == 0 {
			return nil
		}
		if err := tx.Create(&run.Steps).Error; err != nil {
			return fmt.Errorf("save steps of %s: %w", run.ExecutionID, err)
		}
		return nil
	})
}

// Get implements HistoryStore.
func (s *GormHistoryStore) Get(ctx context.Context, executionID string) (*ExecutionHistory, error) {
	var run runRow
	err := s.pool.DB().WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Where("execution_id = ?", executionID).
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrHistoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", executionID, err)
	}
	return fromRunRow(&run), nil
}

// List implements HistoryStore.
func (s *GormHistoryStore) List(ctx context.Context, workflowName string, limit int) ([]*ExecutionHistory, error) {
	q := s.pool.DB().WithContext(ctx).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Order("start_time DESC")
	if workflowName != "" {
		q = q.Where("workflow_name = ?", workflowName)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var runs []runRow
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]*ExecutionHistory, len(runs))
	for i := range runs {
		out[i] = fromRunRow(&runs[i])
	}
	return out, nil
}

func toRunRow(h *ExecutionHistory) runRow {
	h.mu.Lock()
	defer h.mu.Unlock()

	run := runRow{
		ExecutionID:  h.ExecutionID,
		WorkflowName: h.WorkflowName,
		Mode:         h.Mode,
		Status:       string(h.Status),
		StartTime:    h.StartTime,
		EndTime:      h.EndTime,
		DurationMs:   h.Duration.Milliseconds(),
		ErrorMessage: h.ErrorMessage,
		Steps:        make([]stepRow, len(h.Steps)),
	}
	for i, st := range h.Steps {
		run.Steps[i] = stepRow{
			ExecutionID:  h.ExecutionID,
			Position:     i,
			Name:         st.Name,
			Role:         st.Role,
			Success:      st.Success,
			DurationMs:   st.DurationMs,
			ErrorMessage: st.ErrorMessage,
		}
	}
	return run
}

func fromRunRow(run *runRow) *ExecutionHistory {
	h := &ExecutionHistory{
		ExecutionID:  run.ExecutionID,
		WorkflowName: run.WorkflowName,
		Mode:         run.Mode,
		Status:       types.WorkflowStatus(run.Status),
		StartTime:    run.StartTime,
		EndTime:      run.EndTime,
		Duration:     time.Duration(run.DurationMs) * time.Millisecond,
		ErrorMessage: run.ErrorMessage,
		Steps:        make([]*StepRecord, len(run.Steps)),
	}
	for i, st := range run.Steps {
		h.Steps[i] = &StepRecord{
			Name:         st.Name,
			Role:         st.Role,
			Success:      st.Success,
			DurationMs:   st.DurationMs,
			ErrorMessage: st.ErrorMessage,
		}
	}
	return h
}
