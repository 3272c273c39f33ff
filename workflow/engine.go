package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/BaSui01/taskflow/executor"
	"github.com/BaSui01/taskflow/internal/ctxkeys"
	"github.com/BaSui01/taskflow/internal/metrics"
	"github.com/BaSui01/taskflow/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/BaSui01/taskflow/workflow"

// Runner dispatches tasks for the engine. *executor.Executor implements it.
type Runner interface {
	Submit(ctx context.Context, req *types.TaskRequest) *executor.Future
	ExecuteParallel(ctx context.Context, tasks []*types.TaskRequest) []*types.TaskResult
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithMetrics records workflow runs on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.metrics = c }
}

// WithTracer overrides the tracer used for workflow spans.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithHistoryStore saves a record of every run to store.
func WithHistoryStore(store HistoryStore) Option {
	return func(e *Engine) { e.history = store }
}

// Engine runs workflows, chains and fan-out/fan-in patterns on a Runner.
type Engine struct {
	runner  Runner
	logger  *zap.Logger
	metrics *metrics.Collector
	tracer  trace.Tracer
	history HistoryStore
}

// NewEngine creates an Engine on top of runner.
func NewEngine(runner Runner, opts ...Option) *Engine {
	e := &Engine{runner: runner}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.With(zap.String("component", "workflow_engine"))
	if e.tracer == nil {
		e.tracer = otel.Tracer(tracerName)
	}
	return e
}

// ExecuteWorkflow runs wf's steps in dependency order. Structural problems
// (invalid definition, dependency cycle) are returned as errors before any
// step is dispatched. Steps whose dependency sets are disjoint run
// concurrently; a step starts only after all its dependencies resolved.
//
// If a dependency cannot be resolved at all, the run aborts and a failed
// result with empty StepResults is returned. A dependency that resolved to
// an unsuccessful TaskResult does not abort the run.
func (e *Engine) ExecuteWorkflow(ctx context.Context, wf *types.Workflow) (*types.WorkflowResult, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	order, err := TopologicalSort(wf.Steps)
	if err != nil {
		e.logger.Error("workflow rejected", zap.String("workflow", wf.Name), zap.Error(err))
		return nil, err
	}

	execID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "taskflow.workflow", trace.WithAttributes(
		attribute.String("taskflow.workflow", wf.Name),
		attribute.String("taskflow.execution_id", execID),
		attribute.Int("taskflow.steps", len(order)),
	))
	defer span.End()
	ctx = ctxkeys.WithRunID(ctx, execID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := e.logger.With(zap.String("workflow", wf.Name), zap.String("execution_id", execID))
	logger.Info("workflow started", zap.Int("steps", len(order)))

	hist := NewExecutionHistory(execID, wf.Name, ModeDAG)
	futures := make(map[string]*executor.Future, len(order))
	resolved := make(map[string]*types.TaskResult, len(order))

	await := func(name string) (*types.TaskResult, error) {
		if res, ok := resolved[name]; ok {
			return res, nil
		}
		res, err := futures[name].Await(runCtx)
		if err == nil && res == nil {
			err = fmt.Errorf("step %s produced no result", name)
		}
		if err != nil {
			return nil, err
		}
		resolved[name] = res
		return res, nil
	}

	roles := make(map[string]string, len(order))
	for _, s := range order {
		roles[s.Name] = s.Role
	}

	abort := func(code types.ErrorCode, failed string, cause error, msg string) (*types.WorkflowResult, error) {
		cancel()
		for _, s := range order {
			if res, ok := resolved[s.Name]; ok {
				hist.RecordStep(s.Name, res)
			}
		}
		hist.RecordUnresolved(failed, roles[failed], cause)
		e.finish(ctx, hist, span, msg)
		logger.Error("workflow aborted", zap.String("code", string(code)), zap.String("reason", msg))
		return types.NewWorkflowFailure(wf.Name, msg), nil
	}

	for _, step := range order {
		var stepCtx map[string]any
		for i, dep := range step.Dependencies {
			res, err := await(dep)
			if err != nil {
				return abort(types.ErrDependencyFailed, dep, err, fmt.Sprintf("Dependency failed: %s: %v", dep, err))
			}
			if stepCtx == nil {
				stepCtx = make(map[string]any, 2*len(step.Dependencies))
			}
			stepCtx[fmt.Sprintf("dependency_%d", i)] = res.Output
			stepCtx[fmt.Sprintf("dependency_%d_role", i)] = res.AgentName
		}

		logger.Debug("dispatching step", zap.String("step", step.Name), zap.String("role", step.Role))
		futures[step.Name] = e.runner.Submit(ctxkeys.WithStepName(runCtx, step.Name),
			types.NewTaskRequest(step.Role, step.Task, stepCtx))
	}

	results := make(map[string]*types.TaskResult, len(order))
	for _, step := range order {
		res, err := await(step.Name)
		if err != nil {
			return abort(types.ErrAgentExecutionFailed, step.Name, err, fmt.Sprintf("Step failed: %s: %v", step.Name, err))
		}
		results[step.Name] = res
	}
	for _, step := range order {
		hist.RecordStep(step.Name, results[step.Name])
	}

	e.finish(ctx, hist, span, "")
	logger.Info("workflow completed", zap.Duration("duration", hist.Duration))
	return types.NewWorkflowSuccess(wf.Name, results), nil
}

// finish completes hist, records it and closes out span.
func (e *Engine) finish(ctx context.Context, hist *ExecutionHistory, span trace.Span, errMsg string) {
	hist.Complete(errMsg)
	e.metrics.RecordWorkflow(hist.WorkflowName, string(hist.Status), hist.Duration)

	span.SetAttributes(attribute.String("taskflow.status", string(hist.Status)))
	if errMsg != "" {
		span.SetStatus(codes.Error, errMsg)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	if e.history == nil {
		return
	}
	// The run context may already be cancelled by an abort.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := e.history.Save(saveCtx, hist); err != nil {
		e.logger.Warn("failed to save execution history",
			zap.String("execution_id", hist.ExecutionID),
			zap.Error(err),
		)
	}
}
