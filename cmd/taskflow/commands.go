package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/BaSui01/taskflow/types"
	"github.com/BaSui01/taskflow/workflow"
	"github.com/BaSui01/taskflow/workflow/dsl"
)

// =============================================================================
// ▶️ run 命令
// =============================================================================

func runWorkflow(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	wfPath := fs.String("workflow", "", "Path to workflow definition")
	vars := varFlags{}
	fs.Var(vars, "var", "Override a workflow variable (key=value)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *wfPath == "" {
		fmt.Fprintln(stderr, "--workflow is required")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	def, err := parseDefinition(*wfPath, vars)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting taskflow",
		zap.String("version", Version),
		zap.String("workflow", def.Name),
		zap.String("mode", def.Mode),
	)
	for _, role := range def.UndefinedRoles() {
		logger.Warn("role has no agent definition", zap.String("role", role))
	}

	a, err := newApp(ctx, cfg, def.Agents, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.close(context.WithoutCancel(ctx))

	var (
		out       any
		succeeded bool
	)
	err = a.serve(ctx, func(ctx context.Context) error {
		var runErr error
		out, succeeded, runErr = a.runDefinition(ctx, def)
		return runErr
	})
	if err != nil {
		logger.Error("workflow run failed", zap.Error(err))
		fmt.Fprintln(stderr, err)
		return 1
	}

	if err := writeJSON(stdout, out); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if !succeeded {
		return 1
	}
	return 0
}

// serve 在 fn 运行期间同时提供 /metrics 端点；fn 返回后端点随之关闭
func (a *app) serve(ctx context.Context, fn func(context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	serveCtx, stop := context.WithCancel(gctx)
	defer stop()

	if a.metricsServer != nil {
		if err := a.metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		g.Go(func() error { return a.metricsServer.Serve(serveCtx) })
	}
	g.Go(func() error {
		defer stop()
		return fn(gctx)
	})
	return g.Wait()
}

// runDefinition 按定义模式执行，返回输出结果与是否成功
func (a *app) runDefinition(ctx context.Context, def *dsl.Definition) (any, bool, error) {
	switch def.Mode {
	case dsl.ModeDAG:
		res, err := a.engine.ExecuteWorkflow(ctx, def.Workflow)
		if err != nil {
			return nil, false, err
		}
		return res, res.Succeeded(), nil
	case dsl.ModeChain:
		res := a.engine.ExecuteChain(ctx, def.Workflow.Steps)
		return res, res.Success, nil
	case dsl.ModeFanOut:
		res := a.engine.ExecuteFanOutFanIn(ctx, def.FanOut.Task, def.FanOut.Roles, def.FanOut.Aggregator)
		return res, res.Success, nil
	default:
		return nil, false, fmt.Errorf("unsupported mode %q", def.Mode)
	}
}

func parseDefinition(path string, vars varFlags) (*dsl.Definition, error) {
	p := dsl.NewParser()
	for k, v := range vars {
		p.SetVariable(k, v)
	}
	def, err := p.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("load workflow %s: %w", path, err)
	}
	return def, nil
}

// =============================================================================
// 🗺️ plan 命令
// =============================================================================

// planOutput 执行计划：每个波次内的步骤可并发执行
type planOutput struct {
	Name  string     `json:"name"`
	Mode  string     `json:"mode"`
	Waves [][]string `json:"waves"`
	Roles []string   `json:"roles"`
}

func runPlan(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("plan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	wfPath := fs.String("workflow", "", "Path to workflow definition")
	vars := varFlags{}
	fs.Var(vars, "var", "Override a workflow variable (key=value)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *wfPath == "" {
		fmt.Fprintln(stderr, "--workflow is required")
		return 2
	}

	def, err := parseDefinition(*wfPath, vars)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	plan, err := buildPlan(def)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if err := writeJSON(stdout, plan); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func buildPlan(def *dsl.Definition) (*planOutput, error) {
	plan := &planOutput{Name: def.Name, Mode: def.Mode, Roles: def.Roles()}

	switch def.Mode {
	case dsl.ModeDAG:
		if err := def.Workflow.Validate(); err != nil {
			return nil, err
		}
		waves, err := workflow.Levels(def.Workflow.Steps)
		if err != nil {
			return nil, err
		}
		plan.Waves = waves
	case dsl.ModeChain:
		for _, s := range def.Workflow.Steps {
			plan.Waves = append(plan.Waves, []string{s.Name})
		}
	case dsl.ModeFanOut:
		plan.Waves = [][]string{def.FanOut.Roles, {def.FanOut.Aggregator}}
	}
	return plan, nil
}

// =============================================================================
// 📦 batch 命令
// =============================================================================

// batchFile 批量任务文件
type batchFile struct {
	Agents map[string]dsl.AgentDef `yaml:"agents"`
	Tasks  []struct {
		Role    string         `yaml:"role"`
		Task    string         `yaml:"task"`
		Context map[string]any `yaml:"context"`
	} `yaml:"tasks"`
}

// batchOutput 批量执行结果，Results 与输入任务顺序一致
type batchOutput struct {
	Strategy  string              `json:"strategy"`
	Results   []*types.TaskResult `json:"results"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

func runBatch(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	tasksPath := fs.String("tasks", "", "Path to task list")
	limit := fs.Int("limit", -1, "Maximum tasks in flight")
	batchSize := fs.Int("batch-size", -1, "Run tasks in batches of this size")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *tasksPath == "" {
		fmt.Fprintln(stderr, "--tasks is required")
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *limit >= 0 {
		cfg.Executor.DefaultLimit = *limit
	}
	if *batchSize >= 0 {
		cfg.Executor.BatchSize = *batchSize
	}

	bf, err := loadBatchFile(*tasksPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	a, err := newApp(ctx, cfg, bf.Agents, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	defer a.close(context.WithoutCancel(ctx))

	reqs := make([]*types.TaskRequest, len(bf.Tasks))
	for i, t := range bf.Tasks {
		reqs[i] = types.NewTaskRequest(t.Role, t.Task, t.Context)
	}

	out := &batchOutput{}
	err = a.serve(ctx, func(ctx context.Context) error {
		switch {
		case cfg.Executor.BatchSize > 0:
			out.Strategy = fmt.Sprintf("batched(%d)", cfg.Executor.BatchSize)
			out.Results = a.executor.ExecuteBatched(ctx, reqs, cfg.Executor.BatchSize)
		case cfg.Executor.DefaultLimit > 0:
			out.Strategy = fmt.Sprintf("limit(%d)", cfg.Executor.DefaultLimit)
			out.Results = a.executor.ExecuteParallelWithLimit(ctx, reqs, cfg.Executor.DefaultLimit)
		default:
			out.Strategy = "parallel"
			out.Results = a.executor.ExecuteParallel(ctx, reqs)
		}
		return nil
	})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	for _, r := range out.Results {
		if r.Success {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	if err := writeJSON(stdout, out); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if out.Failed > 0 {
		return 1
	}
	return 0
}

func loadBatchFile(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task list: %w", err)
	}
	var bf batchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parse task list: %w", err)
	}
	for role, def := range bf.Agents {
		if def.Command == "" {
			return nil, fmt.Errorf("agent %s: command is required", role)
		}
	}
	return &bf, nil
}

// =============================================================================
// 📜 history 命令
// =============================================================================

func runHistory(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to config file")
	name := fs.String("workflow", "", "Only show runs of this workflow")
	id := fs.String("id", "", "Show a single run")
	limit := fs.Int("limit", 20, "Maximum number of runs")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if !cfg.History.Enabled || cfg.History.Driver == "memory" {
		fmt.Fprintln(stderr, "history is not persisted: enable history with a sqlite, postgres or mysql driver")
		return 1
	}

	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := openHistory(ctx, cfg.History, logger)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if closeStore != nil {
		defer closeStore(ctx)
	}

	var out any
	if *id != "" {
		h, err := store.Get(ctx, *id)
		if errors.Is(err, workflow.ErrHistoryNotFound) {
			fmt.Fprintf(stderr, "run %s not found\n", *id)
			return 1
		}
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		out = h
	} else {
		runs, err := store.List(ctx, *name, *limit)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
		out = runs
	}

	if err := writeJSON(stdout, out); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
