// =============================================================================
// taskflow 主入口
// =============================================================================
// 命令行入口点：执行工作流、查看执行计划、批量任务与运行历史
//
// 使用方法:
//
//	taskflow run --workflow wf.yaml                      # 执行工作流
//	taskflow run --config config.yaml --workflow wf.yaml # 指定配置文件
//	taskflow run --workflow wf.yaml --var model=opus     # 覆盖变量
//	taskflow plan --workflow wf.yaml                     # 查看执行波次
//	taskflow batch --tasks tasks.yaml --limit 4          # 批量并行任务
//	taskflow history --config config.yaml --limit 10     # 查看运行历史
//	taskflow version                                     # 显示版本信息
// =============================================================================

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/taskflow/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run 分发子命令并返回退出码
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 2
	}

	switch args[0] {
	case "run":
		return runWorkflow(ctx, args[1:], stdout, stderr)
	case "plan":
		return runPlan(args[1:], stdout, stderr)
	case "batch":
		return runBatch(ctx, args[1:], stdout, stderr)
	case "history":
		return runHistory(ctx, args[1:], stdout, stderr)
	case "version":
		printVersion(stdout)
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 2
	}
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "taskflow %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `taskflow - agent task orchestrator

Usage:
  taskflow <command> [options]

Commands:
  run       Execute a workflow definition
  plan      Validate a workflow definition and print its execution waves
  batch     Execute a list of independent tasks
  history   List saved workflow runs
  version   Show version information
  help      Show this help message

Options for 'run':
  --config <path>     Path to configuration file (YAML)
  --workflow <path>   Path to workflow definition (YAML or JSON)
  --var key=value     Override a workflow variable (repeatable)

Options for 'plan':
  --workflow <path>   Path to workflow definition
  --var key=value     Override a workflow variable (repeatable)

Options for 'batch':
  --config <path>     Path to configuration file
  --tasks <path>      Path to task list (YAML or JSON)
  --limit <n>         Maximum tasks in flight (overrides executor.default_limit)
  --batch-size <n>    Run tasks in batches of n (overrides executor.batch_size)

Options for 'history':
  --config <path>     Path to configuration file
  --workflow <name>   Only show runs of this workflow
  --id <id>           Show a single run
  --limit <n>         Maximum number of runs (default 20)

Examples:
  taskflow run --workflow review.yaml --var target=PR-42
  taskflow plan --workflow review.yaml
  taskflow batch --tasks tasks.yaml --limit 4
  taskflow history --config config.yaml --workflow review
  taskflow version`)
}

// =============================================================================
// ⚙️ 配置加载
// =============================================================================

func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// varFlags 收集可重复的 --var key=value 参数
type varFlags map[string]string

func (v varFlags) String() string {
	pairs := make([]string, 0, len(v))
	for k, val := range v {
		pairs = append(pairs, k+"="+val)
	}
	return strings.Join(pairs, ",")
}

func (v varFlags) Set(s string) error {
	k, val, ok := strings.Cut(s, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected key=value, got %q", s)
	}
	v[k] = val
	return nil
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Format == "console",
		Encoding:          "json",
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}
	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	logger, err := zapConfig.Build()
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
