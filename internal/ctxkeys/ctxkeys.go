// Package ctxkeys 定义在 context 中传递的运行标识。
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	runIDKey    contextKey = "run_id"
	stepNameKey contextKey = "step_name"
)

// WithRunID 设置工作流执行 ID
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID 获取工作流执行 ID
func RunID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(runIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithStepName 设置当前步骤名
func WithStepName(ctx context.Context, step string) context.Context {
	return context.WithValue(ctx, stepNameKey, step)
}

// StepName 获取当前步骤名
func StepName(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(stepNameKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
