// Copyright (c) taskflow Authors.
// Licensed under the MIT License.

/*
Package main 提供 taskflow 命令行程序入口。

# 概述

cmd/taskflow 从 YAML/JSON 工作流定义构建命令行 Agent 注册表，
通过共享工作池执行 dag、chain、fanout 三种模式，并以 JSON 输出结果。
程序支持 YAML 配置文件与环境变量、结构化日志（zap）、
Prometheus 指标端点、OpenTelemetry 追踪、Redis 结果缓存与运行历史存储。

# 子命令

  - run      执行工作流定义，失败时退出码为 1
  - plan     校验定义并输出执行波次，不执行任何任务
  - batch    以并行、限流或分批方式执行一组独立任务
  - history  查询已保存的运行历史
  - version  显示版本信息

# 构建注入

Version、BuildTime、GitCommit 通过 ldflags 设置。
*/
package main
