// Copyright 2026 taskflow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 taskflow 测试的共享工具和辅助函数。

# 概述

testutil 包为执行器、工作流引擎与 CLI 的单元测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertResultSucceeded / AssertResultFailed / AssertJSONEqual
  - 异步断言: AssertEventuallyTrue，支持超时轮询等待条件满足
  - 数据工具: Requests / MustJSON，简化测试数据构造

# 子包

  - testutil/mocks: MockAgent（可注入输出、错误、panic、延迟、闸门）
    与 ConcurrencyTracker（跨 Agent 统计并发峰值）
  - testutil/fixtures: 预置工作流样例（菱形 DAG、链、环）

# 使用示例

	ctx := testutil.TestContext(t)
	a := mocks.NewMockAgent("coder").WithOutput("done")
	res, err := a.ExecuteTask(ctx, types.NewTaskRequest("coder", "x", nil))
*/
package testutil
