// =============================================================================
// 🧪 测试辅助函数
// =============================================================================
// 提供通用的测试辅助函数和断言
//
// 使用方法:
//
//	ctx := testutil.TestContext(t)
//	testutil.AssertResultSucceeded(t, res, "expected output")
//
// =============================================================================
package testutil

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/taskflow/types"
)

// =============================================================================
// 🎯 上下文辅助
// =============================================================================

// TestContext 返回带超时的测试上下文
func TestContext(t *testing.T) context.Context {
	return TestContextWithTimeout(t, 30*time.Second)
}

// TestContextWithTimeout 返回带自定义超时的测试上下文
func TestContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

// CancelledContext 返回已取消的上下文
func CancelledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// =============================================================================
// 🔍 断言辅助
// =============================================================================

// AssertResultSucceeded 断言结果成功且输出符合预期
func AssertResultSucceeded(t *testing.T, res *types.TaskResult, output string) {
	t.Helper()
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if !res.Success {
		t.Fatalf("expected success, got failure: %s", res.ErrorMessage)
	}
	if res.Output != output {
		t.Errorf("output mismatch:\nexpected: %q\nactual: %q", output, res.Output)
	}
	if res.ErrorMessage != "" {
		t.Errorf("successful result carries error message %q", res.ErrorMessage)
	}
}

// AssertResultFailed 断言结果失败且错误信息包含 substr
func AssertResultFailed(t *testing.T, res *types.TaskResult, substr string) {
	t.Helper()
	if res == nil {
		t.Fatal("expected a result, got nil")
	}
	if res.Success {
		t.Fatalf("expected failure, got success with output %q", res.Output)
	}
	if !strings.Contains(res.ErrorMessage, substr) {
		t.Errorf("expected error message %q to contain %q", res.ErrorMessage, substr)
	}
	if res.Output != "" {
		t.Errorf("failed result carries output %q", res.Output)
	}
}

// AssertJSONEqual 断言两个值的 JSON 表示相等
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}

	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}

	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual: %s", expectedJSON, actualJSON)
	}
}

// AssertEventuallyTrue 断言条件最终为真
func AssertEventuallyTrue(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Errorf("condition did not become true within %v", timeout)
}

// =============================================================================
// 📦 数据辅助
// =============================================================================

// Requests 为每个角色构造一个相同任务文本的请求
func Requests(task string, roles ...string) []*types.TaskRequest {
	out := make([]*types.TaskRequest, len(roles))
	for i, role := range roles {
		out[i] = types.NewTaskRequest(role, task, nil)
	}
	return out
}

// MustJSON 序列化为 JSON 字符串，失败时 panic
func MustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
