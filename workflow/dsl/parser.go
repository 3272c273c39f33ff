package dsl

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/BaSui01/taskflow/types"
	"gopkg.in/yaml.v3"
)

// Definition 解析并完成插值后的工作流定义
type Definition struct {
	Name        string
	Description string
	Mode        string
	// Workflow dag 与 chain 模式的步骤；chain 模式按 Steps 顺序执行
	Workflow *types.Workflow
	// FanOut fanout 模式定义
	FanOut   *FanOutDef
	Agents   map[string]AgentDef
	Metadata map[string]any
}

// Roles 返回定义中引用的全部角色（去重、排序）
func (d *Definition) Roles() []string {
	var roles []string
	if d.Workflow != nil {
		for _, s := range d.Workflow.Steps {
			roles = append(roles, s.Role)
		}
	}
	if d.FanOut != nil {
		roles = append(roles, d.FanOut.Roles...)
		roles = append(roles, d.FanOut.Aggregator)
	}
	slices.Sort(roles)
	return slices.Compact(roles)
}

// UndefinedRoles 返回被引用但未在 agents 中声明的角色
func (d *Definition) UndefinedRoles() []string {
	var missing []string
	for _, role := range d.Roles() {
		if _, ok := d.Agents[role]; !ok {
			missing = append(missing, role)
		}
	}
	return missing
}

// Parser DSL 解析器
type Parser struct {
	// overrides 覆盖变量默认值（如命令行 --var）
	overrides map[string]string
}

// NewParser 创建 DSL 解析器
func NewParser() *Parser {
	return &Parser{overrides: make(map[string]string)}
}

// SetVariable 设置变量值，优先于定义中的默认值
func (p *Parser) SetVariable(name, value string) *Parser {
	p.overrides[name] = value
	return p
}

// ParseFile 从文件解析 DSL
func (p *Parser) ParseFile(filename string) (*Definition, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read DSL file: %w", err)
	}
	return p.Parse(data)
}

// Parse 从 YAML（或 JSON）字节解析 DSL
func (p *Parser) Parse(data []byte) (*Definition, error) {
	var dsl WorkflowDSL
	if err := yaml.Unmarshal(data, &dsl); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if dsl.Mode == "" {
		dsl.Mode = ModeDAG
	}

	// 1. 验证 DSL
	if err := p.validate(&dsl); err != nil {
		return nil, fmt.Errorf("validate DSL: %w", err)
	}

	// 2. 解析变量，构建插值上下文
	vars, err := p.resolveVariables(dsl.Variables)
	if err != nil {
		return nil, fmt.Errorf("resolve variables: %w", err)
	}

	// 3. 构建定义
	return p.build(&dsl, vars), nil
}

// validate 验证 DSL
func (p *Parser) validate(dsl *WorkflowDSL) error {
	v := NewValidator()
	errs := v.Validate(dsl)
	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return fmt.Errorf("validation errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// resolveVariables 合并覆盖值与默认值，并按声明类型校验
func (p *Parser) resolveVariables(varDefs map[string]VariableDef) (map[string]any, error) {
	vars := make(map[string]any, len(varDefs))
	for name, def := range varDefs {
		if raw, ok := p.overrides[name]; ok {
			if err := checkType(def.Type, raw); err != nil {
				return nil, fmt.Errorf("variable %q: %w", name, err)
			}
			vars[name] = raw
			continue
		}
		if def.Default != nil {
			vars[name] = def.Default
			continue
		}
		if def.Required {
			return nil, fmt.Errorf("variable %q is required", name)
		}
	}
	for name := range p.overrides {
		if _, ok := varDefs[name]; !ok {
			return nil, fmt.Errorf("variable %q is not defined", name)
		}
	}
	return vars, nil
}

func checkType(typ, raw string) error {
	var err error
	switch typ {
	case "int":
		_, err = strconv.ParseInt(raw, 10, 64)
	case "float":
		_, err = strconv.ParseFloat(raw, 64)
	case "bool":
		_, err = strconv.ParseBool(raw)
	}
	if err != nil {
		return fmt.Errorf("%q is not a valid %s", raw, typ)
	}
	return nil
}

// interpolate 变量插值（替换 ${var_name}），未知变量保持原样
func (p *Parser) interpolate(template string, vars map[string]any) string {
	if !strings.Contains(template, "${") {
		return template
	}
	result := template
	for name, value := range vars {
		placeholder := "${" + name + "}"
		result = strings.ReplaceAll(result, placeholder, fmt.Sprintf("%v", value))
	}
	return result
}

func (p *Parser) interpolateAll(list []string, vars map[string]any) []string {
	if list == nil {
		return nil
	}
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = p.interpolate(s, vars)
	}
	return out
}

// build 从 DSL 构建 Definition
func (p *Parser) build(dsl *WorkflowDSL, vars map[string]any) *Definition {
	def := &Definition{
		Name:        dsl.Name,
		Description: dsl.Description,
		Mode:        dsl.Mode,
		Agents:      make(map[string]AgentDef, len(dsl.Agents)),
		Metadata:    dsl.Metadata,
	}

	for role, a := range dsl.Agents {
		def.Agents[role] = AgentDef{
			Command:    p.interpolate(a.Command, vars),
			Args:       p.interpolateAll(a.Args, vars),
			Env:        p.interpolateAll(a.Env, vars),
			Dir:        p.interpolate(a.Dir, vars),
			JSONOutput: a.JSONOutput,
		}
	}

	switch dsl.Mode {
	case ModeDAG, ModeChain:
		steps := make([]types.WorkflowStep, len(dsl.Steps))
		for i, s := range dsl.Steps {
			steps[i] = types.WorkflowStep{
				Name:         s.Name,
				Role:         s.Role,
				Task:         p.interpolate(s.Task, vars),
				Dependencies: slices.Clone(s.DependsOn),
			}
		}
		def.Workflow = types.NewWorkflow(dsl.Name, steps...)
	case ModeFanOut:
		def.FanOut = &FanOutDef{
			Task:       p.interpolate(dsl.FanOut.Task, vars),
			Roles:      slices.Clone(dsl.FanOut.Roles),
			Aggregator: dsl.FanOut.Aggregator,
		}
	}
	return def
}
