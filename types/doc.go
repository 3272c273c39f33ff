// Copyright (c) taskflow Authors.
// Licensed under the MIT License.

/*
Package types 提供 taskflow 的共享值类型与结构化错误定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 agent、executor、workflow
等上层模块提供统一的类型契约，避免循环依赖。

# 核心类型

  - TaskRequest: 一次 Agent 调用的输入（role + task + context）
  - TaskResult: 一次 Agent 调用的结果（成功/失败二选一）
  - WorkflowStep: 工作流中的具名步骤及其依赖
  - Workflow: 步骤集合（名称唯一、依赖必须指向同一工作流内的步骤）
  - WorkflowResult: 工作流执行结果（success / failed + 每步结果）
  - Error / ErrorCode: 结构化错误体系

# 约定

值类型在构造后视为不可变：构造函数会复制传入的 map，
调用方不应修改已返回的结果。
*/
package types
