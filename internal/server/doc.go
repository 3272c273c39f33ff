// 版权所有 2024 taskflow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理 taskflow 辅助 HTTP 端点（/metrics、/healthz）的生命周期。

# 概述

Manager 封装 net/http.Server，负责监听、服务与优雅关闭。
Serve 在上下文取消前阻塞，适合与 errgroup 中的工作流运行并行。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道。
  - Config：监听地址、读写超时、空闲超时与优雅关闭超时。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 阻塞运行：Serve 直到上下文取消或服务异常退出，随后优雅关闭。
  - 指标端点：MetricsHandler 基于 prometheus.Gatherer 暴露 /metrics。
*/
package server
