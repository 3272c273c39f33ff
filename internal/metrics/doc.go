// 版权所有 2024 taskflow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的任务调度指标采集能力，覆盖
任务执行、工作流运行、工作池与结果缓存四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制。所有指标按 namespace 隔离，nil Collector 上的记录
方法均为空操作，调用方无需判空。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等指标。

# 主要能力

  - 任务指标：执行总数（按 role/status）、执行耗时、在途任务数。
  - 工作池指标：等待空闲槽位的耗时分布。
  - 工作流指标：运行总数（按 workflow/status）、运行耗时。
  - 缓存指标：结果缓存命中与未命中计数。
*/
package metrics
