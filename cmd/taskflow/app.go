package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/taskflow/agent"
	"github.com/BaSui01/taskflow/config"
	"github.com/BaSui01/taskflow/executor"
	"github.com/BaSui01/taskflow/internal/cache"
	"github.com/BaSui01/taskflow/internal/database"
	"github.com/BaSui01/taskflow/internal/metrics"
	"github.com/BaSui01/taskflow/internal/server"
	"github.com/BaSui01/taskflow/internal/telemetry"
	"github.com/BaSui01/taskflow/workflow"
	"github.com/BaSui01/taskflow/workflow/dsl"
)

// =============================================================================
// 🧩 运行时装配
// =============================================================================

// app 持有一次命令执行所需的全部组件
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	registry *agent.Registry
	executor *executor.Executor
	engine   *workflow.Engine
	history  workflow.HistoryStore

	metricsServer *server.Manager
	closers       []func(context.Context)
}

// newApp 按配置装配执行器、引擎与可选的缓存、历史、指标、追踪组件。
// agents 为 角色 -> 命令行 Agent 定义。
func newApp(ctx context.Context, cfg *config.Config, agents map[string]dsl.AgentDef, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	a.registry = buildRegistry(agents, logger)

	// 1. 追踪
	providers, err := telemetry.Init(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	var tracer trace.Tracer
	if providers != nil {
		tracer = providers.Tracer()
		a.closers = append(a.closers, func(ctx context.Context) {
			if err := providers.Shutdown(ctx); err != nil {
				logger.Warn("telemetry shutdown failed", zap.Error(err))
			}
		})
	}

	// 2. 指标
	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		collector = metrics.NewCollectorWithRegisterer(cfg.Metrics.Namespace, reg, logger)
		srvCfg := server.DefaultConfig()
		srvCfg.Addr = cfg.Metrics.Addr
		a.metricsServer = server.NewManager(server.MetricsHandler(reg), srvCfg, logger)
	}

	execOpts := []executor.Option{
		executor.WithLogger(logger),
		executor.WithMaxWorkers(cfg.Executor.MaxWorkers),
		executor.WithMetrics(collector),
		executor.WithTaskTimeout(cfg.Executor.TaskTimeout),
		executor.WithRateLimit(cfg.Executor.RateLimitRPS, cfg.Executor.RateLimitBurst),
	}
	if tracer != nil {
		execOpts = append(execOpts, executor.WithTracer(tracer))
	}

	// 3. 结果缓存
	if cfg.Cache.Enabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = cfg.Cache.Addr
		cacheCfg.Password = cfg.Cache.Password
		cacheCfg.DB = cfg.Cache.DB
		cacheCfg.DefaultTTL = cfg.Cache.TTL
		cacheCfg.PoolSize = cfg.Cache.PoolSize
		cacheCfg.KeyPrefix = cfg.Cache.KeyPrefix

		mgr, err := cache.NewManager(ctx, cacheCfg, logger)
		if err != nil {
			// 缓存不可用时降级为直接执行
			logger.Warn("result cache unavailable, continuing without it", zap.Error(err))
		} else {
			execOpts = append(execOpts, executor.WithResultCache(cache.NewResultCache(mgr, cfg.Cache.TTL, logger)))
			a.closers = append(a.closers, func(context.Context) { _ = mgr.Close() })
		}
	}

	// 4. 运行历史
	if cfg.History.Enabled {
		store, closeStore, err := openHistory(ctx, cfg.History, logger)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.history = store
		if closeStore != nil {
			a.closers = append(a.closers, closeStore)
		}
	}

	a.executor = executor.New(a.registry, execOpts...)
	a.closers = append(a.closers, func(context.Context) { a.executor.Close() })

	engineOpts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithMetrics(collector),
	}
	if tracer != nil {
		engineOpts = append(engineOpts, workflow.WithTracer(tracer))
	}
	if a.history != nil {
		engineOpts = append(engineOpts, workflow.WithHistoryStore(a.history))
	}
	a.engine = workflow.NewEngine(a.executor, engineOpts...)

	return a, nil
}

// close 逆序释放资源
func (a *app) close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i](ctx)
	}
	a.closers = nil
}

// buildRegistry 为每个角色注册命令行 Agent
func buildRegistry(agents map[string]dsl.AgentDef, logger *zap.Logger) *agent.Registry {
	reg := agent.NewRegistry(logger)

	roles := make([]string, 0, len(agents))
	for role := range agents {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	for _, role := range roles {
		def := agents[role]
		opts := []agent.CommandOption{agent.WithCommandLogger(logger)}
		if len(def.Env) > 0 {
			opts = append(opts, agent.WithCommandEnv(def.Env...))
		}
		if def.Dir != "" {
			opts = append(opts, agent.WithCommandDir(def.Dir))
		}
		if def.JSONOutput {
			opts = append(opts, agent.WithJSONOutput())
		}
		reg.Register(role, agent.NewCommandAgent(role, def.Command, def.Args, opts...))
	}
	return reg
}

// openHistory 打开运行历史存储；memory 驱动不需要关闭
func openHistory(ctx context.Context, cfg config.HistoryConfig, logger *zap.Logger) (workflow.HistoryStore, func(context.Context), error) {
	if cfg.Driver == "memory" {
		return workflow.NewMemoryHistoryStore(), nil, nil
	}

	pm, err := database.Open(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open history database: %w", err)
	}
	store, err := workflow.NewGormHistoryStore(ctx, pm, logger)
	if err != nil {
		_ = pm.Close()
		return nil, nil, err
	}
	logger.Info("history store ready", zap.String("driver", cfg.Driver))
	return store, func(context.Context) { _ = pm.Close() }, nil
}
