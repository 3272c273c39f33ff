package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/taskflow/config"
	"github.com/BaSui01/taskflow/types"
	"github.com/BaSui01/taskflow/workflow"
	"github.com/BaSui01/taskflow/workflow/dsl"
)

// =============================================================================
// 🧪 测试辅助
// =============================================================================

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(t.Context(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func requireCat(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
}

// testConfig 写入把日志写到临时文件、历史存到 sqlite 的配置
func testConfig(t *testing.T, dir string, extra string) string {
	t.Helper()
	return writeFile(t, dir, "config.yaml", fmt.Sprintf(`
log:
  level: error
  format: json
  output_paths: [%q]
history:
  enabled: true
  driver: sqlite
  name: %q
%s`, filepath.Join(dir, "taskflow.log"), filepath.Join(dir, "history.db"), extra))
}

const designImplement = `
version: "1"
name: design-implement
agents:
  architect: {command: cat}
  coder: {command: cat}
steps:
  - {name: design, role: architect, task: "design ${thing}"}
  - {name: implement, role: coder, task: implement it, depends_on: [design]}
variables:
  thing: {type: string, default: the service}
`

// =============================================================================
// 🎯 子命令分发
// =============================================================================

func TestRun_Dispatch(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage:")

	code, _, stderr = runCLI(t, "explode")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Unknown command: explode")

	code, stdout, _ := runCLI(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "taskflow dev")

	code, stdout, _ = runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "Commands:")
}

func TestRun_MissingRequiredFlags(t *testing.T) {
	for _, cmd := range []string{"run", "plan", "batch"} {
		code, _, stderr := runCLI(t, cmd)
		assert.Equal(t, 2, code, cmd)
		assert.Contains(t, stderr, "is required", cmd)
	}
}

func TestVarFlags(t *testing.T) {
	v := varFlags{}
	require.NoError(t, v.Set("model=opus"))
	require.NoError(t, v.Set("expr=a=b"))
	assert.Equal(t, "opus", v["model"])
	assert.Equal(t, "a=b", v["expr"])
	assert.Error(t, v.Set("novalue"))
	assert.Error(t, v.Set("=x"))
}

func TestInitLogger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")

	logger := initLogger(config.LogConfig{Level: "warn", Format: "json", OutputPaths: []string{path}})
	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), `"msg":"shown"`)
	assert.Contains(t, string(data), `"timestamp"`)

	// 非法级别回退到 info
	logger = initLogger(config.LogConfig{Level: "loud", Format: "console", OutputPaths: []string{path}})
	assert.True(t, logger.Core().Enabled(0))
}

// =============================================================================
// ▶️ run
// =============================================================================

func TestRunWorkflow_DAG(t *testing.T) {
	requireCat(t)
	dir := t.TempDir()
	cfgPath := testConfig(t, dir, "")
	wfPath := writeFile(t, dir, "wf.yaml", designImplement)

	code, stdout, stderr := runCLI(t, "run", "--config", cfgPath, "--workflow", wfPath)
	require.Equal(t, 0, code, stderr)

	var res types.WorkflowResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, types.WorkflowStatusSuccess, res.Status)
	assert.Equal(t, "design the service", res.StepResults["design"].Output)
	assert.Contains(t, res.StepResults["implement"].Output, "dependency_0: design the service")
	assert.Contains(t, res.StepResults["implement"].Output, "dependency_0_role: architect")

	// 运行历史已写入 sqlite
	code, stdout, stderr = runCLI(t, "history", "--config", cfgPath, "--workflow", "design-implement")
	require.Equal(t, 0, code, stderr)

	var runs []*workflow.ExecutionHistory
	require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, types.WorkflowStatusSuccess, runs[0].Status)
	assert.Len(t, runs[0].Steps, 2)

	code, stdout, stderr = runCLI(t, "history", "--config", cfgPath, "--id", runs[0].ExecutionID)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, runs[0].ExecutionID)

	code, _, stderr = runCLI(t, "history", "--config", cfgPath, "--id", "missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not found")
}

func TestRunWorkflow_VariableOverride(t *testing.T) {
	requireCat(t)
	dir := t.TempDir()
	wfPath := writeFile(t, dir, "wf.yaml", designImplement)

	code, stdout, stderr := runCLI(t, "run", "--config", testConfig(t, dir, ""), "--workflow", wfPath, "--var", "thing=a parser")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "design a parser")
}

func TestRunWorkflow_Chain(t *testing.T) {
	requireCat(t)
	dir := t.TempDir()
	wfPath := writeFile(t, dir, "chain.yaml", `
version: "1"
name: pipeline
mode: chain
agents:
  writer: {command: cat}
  editor: {command: cat}
steps:
  - {name: draft, role: writer, task: draft it}
  - {name: edit, role: editor, task: edit it}
`)

	code, stdout, stderr := runCLI(t, "run", "--config", testConfig(t, dir, ""), "--workflow", wfPath)
	require.Equal(t, 0, code, stderr)

	var res types.TaskResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.True(t, res.Success)
	assert.Equal(t, "editor", res.AgentName)
	assert.Contains(t, res.Output, "previousOutput: draft it")
}

func TestRunWorkflow_ChainFailureExitsNonZero(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	requireCat(t)
	dir := t.TempDir()
	wfPath := writeFile(t, dir, "chain.yaml", `
version: "1"
name: pipeline
mode: chain
agents:
  writer: {command: "false"}
  editor: {command: cat}
steps:
  - {name: draft, role: writer, task: draft it}
  - {name: edit, role: editor, task: edit it}
`)

	code, stdout, _ := runCLI(t, "run", "--config", testConfig(t, dir, ""), "--workflow", wfPath)
	assert.Equal(t, 1, code)

	var res types.TaskResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.False(t, res.Success)
	assert.Equal(t, "writer", res.AgentName)
	assert.Contains(t, res.ErrorMessage, "Execution failed:")
}

func TestRunWorkflow_FanOutWithMetrics(t *testing.T) {
	requireCat(t)
	dir := t.TempDir()
	wfPath := writeFile(t, dir, "fan.yaml", `
version: "1"
name: review-board
mode: fanout
agents:
  sec: {command: cat}
  perf: {command: cat}
  lead: {command: cat}
fanout:
  task: review PR 42
  roles: [sec, perf]
  aggregator: lead
`)
	cfgPath := testConfig(t, dir, "metrics:\n  enabled: true\n  namespace: taskflow_test\n  addr: \"127.0.0.1:0\"\n")

	code, stdout, stderr := runCLI(t, "run", "--config", cfgPath, "--workflow", wfPath)
	require.Equal(t, 0, code, stderr)

	var res types.TaskResult
	require.NoError(t, json.Unmarshal([]byte(stdout), &res))
	assert.Equal(t, "lead", res.AgentName)
	assert.Contains(t, res.Output, "Synthesize and summarize the following responses:")
	assert.Contains(t, res.Output, "result_0: review PR 42")
	assert.Contains(t, res.Output, "result_1_role: perf")
}

func TestRunWorkflow_Cycle(t *testing.T) {
	dir := t.TempDir()
	wfPath := writeFile(t, dir, "cycle.yaml", `
version: "1"
name: loop
steps:
  - {name: a, role: r, task: t, depends_on: [b]}
  - {name: b, role: r, task: t, depends_on: [a]}
`)

	code, stdout, stderr := runCLI(t, "run", "--config", testConfig(t, dir, ""), "--workflow", wfPath)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "dependency cycle")
}

func TestRunWorkflow_BadInputs(t *testing.T) {
	dir := t.TempDir()

	code, _, stderr := runCLI(t, "run", "--workflow", filepath.Join(dir, "missing.yaml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "read DSL file")

	badCfg := writeFile(t, dir, "bad.yaml", "executor:\n  max_workers: -1\n")
	wfPath := writeFile(t, dir, "wf.yaml", designImplement)
	code, _, stderr = runCLI(t, "run", "--config", badCfg, "--workflow", wfPath)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid config")
}

// =============================================================================
// 🗺️ plan
// =============================================================================

func TestPlan(t *testing.T) {
	dir := t.TempDir()
	wfPath := writeFile(t, dir, "diamond.yaml", `
version: "1"
name: diamond
steps:
  - {name: a, role: planner, task: plan}
  - {name: b, role: left, task: left, depends_on: [a]}
  - {name: c, role: right, task: right, depends_on: [a]}
  - {name: d, role: merger, task: merge, depends_on: [b, c]}
`)

	code, stdout, stderr := runCLI(t, "plan", "--workflow", wfPath)
	require.Equal(t, 0, code, stderr)

	var plan planOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &plan))
	assert.Equal(t, "diamond", plan.Name)
	assert.Equal(t, dsl.ModeDAG, plan.Mode)
	assert.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, plan.Waves)
	assert.Equal(t, []string{"left", "merger", "planner", "right"}, plan.Roles)
}

func TestBuildPlan_OtherModes(t *testing.T) {
	chain := &dsl.Definition{
		Name: "c", Mode: dsl.ModeChain,
		Workflow: types.NewWorkflow("c",
			types.WorkflowStep{Name: "x", Role: "r"},
			types.WorkflowStep{Name: "y", Role: "r"},
		),
	}
	plan, err := buildPlan(chain)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"x"}, {"y"}}, plan.Waves)

	fan := &dsl.Definition{
		Name: "f", Mode: dsl.ModeFanOut,
		FanOut: &dsl.FanOutDef{Task: "t", Roles: []string{"a", "b"}, Aggregator: "lead"},
	}
	plan, err = buildPlan(fan)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"lead"}}, plan.Waves)
}

// =============================================================================
// 📦 batch
// =============================================================================

func TestBatch(t *testing.T) {
	requireCat(t)
	dir := t.TempDir()
	tasksPath := writeFile(t, dir, "tasks.yaml", `
agents:
  echo: {command: cat}
tasks:
  - {role: echo, task: one}
  - {role: echo, task: two, context: {lang: go}}
  - {role: Ghost, task: three}
`)
	cfgPath := testConfig(t, dir, "")

	tests := []struct {
		args     []string
		strategy string
	}{
		{nil, "parallel"},
		{[]string{"--limit", "2"}, "limit(2)"},
		{[]string{"--batch-size", "2"}, "batched(2)"},
	}
	for _, tt := range tests {
		t.Run(tt.strategy, func(t *testing.T) {
			args := append([]string{"batch", "--config", cfgPath, "--tasks", tasksPath}, tt.args...)
			code, stdout, stderr := runCLI(t, args...)
			assert.Equal(t, 1, code, stderr) // Ghost 未注册

			var out batchOutput
			require.NoError(t, json.Unmarshal([]byte(stdout), &out))
			assert.Equal(t, tt.strategy, out.Strategy)
			require.Len(t, out.Results, 3)
			assert.Equal(t, "one", out.Results[0].Output)
			assert.Contains(t, out.Results[1].Output, "lang: go")
			assert.Contains(t, out.Results[2].ErrorMessage, "Agent not found: Ghost")
			assert.Equal(t, 2, out.Succeeded)
			assert.Equal(t, 1, out.Failed)
		})
	}
}

func TestLoadBatchFile_RequiresCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "tasks.yaml", "agents:\n  echo: {}\ntasks: []\n")
	_, err := loadBatchFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command is required")
}

// =============================================================================
// 📜 history
// =============================================================================

func TestHistory_Disabled(t *testing.T) {
	code, _, stderr := runCLI(t, "history")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "history is not persisted")
}
