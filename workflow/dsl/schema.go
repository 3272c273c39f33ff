package dsl

// 执行模式
const (
	ModeDAG    = "dag"
	ModeChain  = "chain"
	ModeFanOut = "fanout"
)

// WorkflowDSL 工作流定义文件顶层结构
type WorkflowDSL struct {
	// Version DSL 版本
	Version string `yaml:"version" json:"version"`
	// Name 工作流名称
	Name string `yaml:"name" json:"name"`
	// Description 工作流描述
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// Mode 执行模式，缺省为 dag
	Mode string `yaml:"mode,omitempty" json:"mode,omitempty"`

	// Variables 全局变量定义
	Variables map[string]VariableDef `yaml:"variables,omitempty" json:"variables,omitempty"`

	// Agents 角色 -> 命令行 Agent 定义
	Agents map[string]AgentDef `yaml:"agents,omitempty" json:"agents,omitempty"`

	// Steps dag/chain 模式的步骤，chain 模式按声明顺序执行
	Steps []StepDef `yaml:"steps,omitempty" json:"steps,omitempty"`

	// FanOut fanout 模式定义
	FanOut *FanOutDef `yaml:"fanout,omitempty" json:"fanout,omitempty"`

	// Metadata 元数据
	Metadata map[string]any `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// VariableDef 变量定义
type VariableDef struct {
	Type        string `yaml:"type" json:"type"`                                   // string, int, float, bool
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`         // 默认值
	Description string `yaml:"description,omitempty" json:"description,omitempty"` // 描述
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`       // 是否必填
}

// AgentDef 命令行 Agent 定义，任务通过 stdin 传入
type AgentDef struct {
	Command    string   `yaml:"command" json:"command"`
	Args       []string `yaml:"args,omitempty" json:"args,omitempty"` // 支持 ${variable} 插值
	Env        []string `yaml:"env,omitempty" json:"env,omitempty"`   // KEY=VALUE
	Dir        string   `yaml:"dir,omitempty" json:"dir,omitempty"`
	JSONOutput bool     `yaml:"json_output,omitempty" json:"json_output,omitempty"` // stdout 为 JSON 对象 {"output","error"}，兼容 result/content
}

// StepDef 步骤定义
type StepDef struct {
	Name      string   `yaml:"name" json:"name"`
	Role      string   `yaml:"role" json:"role"`
	Task      string   `yaml:"task" json:"task"` // 支持 ${variable} 插值
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
}

// FanOutDef 扇出/扇入定义
type FanOutDef struct {
	Task       string   `yaml:"task" json:"task"` // 支持 ${variable} 插值
	Roles      []string `yaml:"roles" json:"roles"`
	Aggregator string   `yaml:"aggregator" json:"aggregator"`
}
