// Copyright (c) taskflow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供依赖驱动的工作流引擎与常用编排模式。

# 概述

Engine 在 executor 之上调度 types.Workflow：先校验并用 Kahn 算法做
拓扑排序（发现环时在派发任何任务之前返回 CyclicWorkflowError），
再按排序顺序逐个派发步骤。每个步骤只等待它自己的依赖，因此互不
依赖的分支并发执行。依赖的输出以 dependency_<i> / dependency_<i>_role
注入下游请求的上下文。

# 编排模式

  - ExecuteWorkflow: DAG 工作流，返回 WorkflowResult
  - ExecuteChain: 顺序链，previousOutput 传递上一步输出，首个失败即停止
  - ExecuteFanOutFanIn: 同一任务分发给多个角色，结果以 result_<i> 汇总给聚合角色

# 辅助能力

  - TopologicalSort / Levels: 确定性的拓扑序与执行波次
  - HistoryStore: 运行历史（内存或 GORM 持久化），写入失败只记录日志
  - dsl 子包: YAML/JSON 工作流定义解析
*/
package workflow
