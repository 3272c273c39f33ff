package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/BaSui01/taskflow/internal/ctxkeys"
	"github.com/BaSui01/taskflow/types"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// SynthesisInstruction is the task text given to a fan-in aggregator.
const SynthesisInstruction = "Synthesize and summarize the following responses:"

// ExecuteChain runs steps strictly one after another. Each step after the
// first receives the prior step's output as "previousOutput". The chain
// stops at the first unsuccessful step and returns its result; otherwise
// the last step's result is returned. Step dependencies are ignored.
func (e *Engine) ExecuteChain(ctx context.Context, steps []types.WorkflowStep) *types.TaskResult {
	if len(steps) == 0 {
		return types.NewFailureResult("", "", "chain has no steps", 0)
	}

	execID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "taskflow.chain", trace.WithAttributes(
		attribute.String("taskflow.execution_id", execID),
		attribute.Int("taskflow.steps", len(steps)),
	))
	defer span.End()
	ctx = ctxkeys.WithRunID(ctx, execID)

	hist := NewExecutionHistory(execID, "chain", ModeChain)
	logger := e.logger.With(zap.String("execution_id", execID))
	logger.Info("chain started", zap.Int("steps", len(steps)))

	var last *types.TaskResult
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			last = types.NewFailureResult(step.Role, step.Task, "Execution failed: "+err.Error(), 0)
			hist.RecordStep(stepName(step, i), last)
			break
		}

		var stepCtx map[string]any
		if last != nil && last.Output != "" {
			stepCtx = map[string]any{"previousOutput": last.Output}
		}

		last = e.runOne(ctxkeys.WithStepName(ctx, stepName(step, i)), types.NewTaskRequest(step.Role, step.Task, stepCtx))
		hist.RecordStep(stepName(step, i), last)
		if !last.Success {
			logger.Warn("chain stopped at failing step",
				zap.Int("index", i),
				zap.String("role", step.Role),
				zap.String("error", last.ErrorMessage),
			)
			break
		}
	}

	e.finish(ctx, hist, span, last.ErrorMessage)
	return last
}

// ExecuteFanOutFanIn sends initialTask to every role in fanOutRoles
// concurrently, then hands all outputs to aggregatorRole as result_<i> and
// result_<i>_role. The aggregator's result is returned.
func (e *Engine) ExecuteFanOutFanIn(ctx context.Context, initialTask string, fanOutRoles []string, aggregatorRole string) *types.TaskResult {
	execID := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "taskflow.fanout", trace.WithAttributes(
		attribute.String("taskflow.execution_id", execID),
		attribute.StringSlice("taskflow.fanout_roles", fanOutRoles),
		attribute.String("taskflow.aggregator", aggregatorRole),
	))
	defer span.End()
	ctx = ctxkeys.WithRunID(ctx, execID)

	hist := NewExecutionHistory(execID, "fanout", ModeFanOut)
	e.logger.Info("fan-out started",
		zap.String("execution_id", execID),
		zap.Int("branches", len(fanOutRoles)),
	)

	reqs := make([]*types.TaskRequest, len(fanOutRoles))
	for i, role := range fanOutRoles {
		reqs[i] = types.NewTaskRequest(role, initialTask, nil)
	}
	results := e.runner.ExecuteParallel(ctx, reqs)

	fanIn := make(map[string]any, 2*len(results))
	for i, res := range results {
		fanIn[fmt.Sprintf("result_%d", i)] = res.Output
		fanIn[fmt.Sprintf("result_%d_role", i)] = res.AgentName
		hist.RecordStep(fmt.Sprintf("fanout_%d", i), res)
	}

	final := e.runOne(ctx, types.NewTaskRequest(aggregatorRole, SynthesisInstruction, fanIn))
	hist.RecordStep("aggregate", final)

	e.finish(ctx, hist, span, final.ErrorMessage)
	return final
}

// runOne dispatches a single task and waits for it.
func (e *Engine) runOne(ctx context.Context, req *types.TaskRequest) *types.TaskResult {
	res, err := e.runner.Submit(ctx, req).Await(ctx)
	if err == nil && res == nil {
		err = errors.New("no result")
	}
	if err != nil {
		return types.NewFailureResult(req.Role, req.Task, "Execution failed: "+err.Error(), 0)
	}
	return res
}

func stepName(step types.WorkflowStep, i int) string {
	if step.Name != "" {
		return step.Name
	}
	return fmt.Sprintf("step_%d", i)
}
