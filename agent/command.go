package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/taskflow/internal/ctxkeys"
	"github.com/BaSui01/taskflow/types"
)

// CommandAgent runs an external command once per task. The rendered prompt
// is written to stdin and the trimmed stdout becomes the task output. The
// command sees TASKFLOW_ROLE, and TASKFLOW_RUN_ID / TASKFLOW_STEP when the
// task runs inside a workflow.
type CommandAgent struct {
	role      string
	path      string
	args      []string
	env       []string
	dir       string
	parseJSON bool
	logger    *zap.Logger
}

// CommandOption configures a CommandAgent.
type CommandOption func(*CommandAgent)

// WithCommandEnv appends KEY=VALUE entries to the inherited environment.
func WithCommandEnv(env ...string) CommandOption {
	return func(a *CommandAgent) {
		a.env = append(a.env, env...)
	}
}

// WithCommandDir sets the working directory of the command.
func WithCommandDir(dir string) CommandOption {
	return func(a *CommandAgent) {
		a.dir = dir
	}
}

// WithJSONOutput makes the agent decode stdout as a JSON object
// {"output": ..., "error": ...}. "result" and "content" are accepted in
// place of "output", as printed by `claude --output-format json`; a non-empty
// "error" or a true "is_error" fails the task. Stdout that carries none of
// these fields is used verbatim.
func WithJSONOutput() CommandOption {
	return func(a *CommandAgent) {
		a.parseJSON = true
	}
}

// WithCommandLogger sets the logger.
func WithCommandLogger(logger *zap.Logger) CommandOption {
	return func(a *CommandAgent) {
		a.logger = logger
	}
}

// NewCommandAgent creates an agent for role that executes path with args.
func NewCommandAgent(role, path string, args []string, opts ...CommandOption) *CommandAgent {
	a := &CommandAgent{
		role:   role,
		path:   path,
		args:   append([]string(nil), args...),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With(zap.String("component", "command_agent"), zap.String("role", role))
	return a
}

// ExecuteTask implements Agent.
func (a *CommandAgent) ExecuteTask(ctx context.Context, req *types.TaskRequest) (*types.TaskResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, a.path, a.args...)
	cmd.Stdin = strings.NewReader(RenderPrompt(req))
	cmd.Dir = a.dir
	cmd.Env = append(os.Environ(), a.env...)
	cmd.Env = append(cmd.Env, "TASKFLOW_ROLE="+a.role)
	if runID, ok := ctxkeys.RunID(ctx); ok {
		cmd.Env = append(cmd.Env, "TASKFLOW_RUN_ID="+runID)
	}
	if step, ok := ctxkeys.StepName(ctx); ok {
		cmd.Env = append(cmd.Env, "TASKFLOW_STEP="+step)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	a.logger.Debug("running command", zap.String("path", a.path), zap.Strings("args", a.args))

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%s exited with code %d: %s",
				a.path, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return nil, fmt.Errorf("run %s: %w", a.path, err)
	}

	output := strings.TrimSpace(stdout.String())
	if a.parseJSON {
		parsed, err := parseCommandOutput(output)
		if err != nil {
			return nil, err
		}
		output = parsed
	}

	return types.NewSuccessResult(a.role, req.Task, output, time.Since(start)), nil
}

type commandOutput struct {
	Output  *string `json:"output"`
	Result  *string `json:"result"`
	Content *string `json:"content"`
	Error   string  `json:"error"`
	IsError bool    `json:"is_error"`
}

// parseCommandOutput picks the answer out of a JSON object on stdout.
// "output" wins over "result" and "content". Stdout that is not a JSON
// object, or an object with none of those fields, is returned verbatim.
func parseCommandOutput(raw string) (string, error) {
	var co commandOutput
	if err := json.Unmarshal([]byte(raw), &co); err != nil {
		return raw, nil
	}
	text, found := co.text()
	if co.IsError || co.Error != "" {
		msg := co.Error
		if msg == "" {
			msg = text
		}
		return "", fmt.Errorf("command reported error: %s", msg)
	}
	if !found {
		return raw, nil
	}
	return text, nil
}

func (co *commandOutput) text() (string, bool) {
	for _, field := range []*string{co.Output, co.Result, co.Content} {
		if field != nil {
			return *field, true
		}
	}
	return "", false
}
