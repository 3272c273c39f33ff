package dsl

import (
	"fmt"
	"strings"
)

// Validator DSL 验证器
type Validator struct{}

// NewValidator 创建验证器
func NewValidator() *Validator {
	return &Validator{}
}

// Validate 验证 DSL 定义。依赖环不在此检测，由调度器在执行前报告。
func (v *Validator) Validate(dsl *WorkflowDSL) []error {
	var errs []error

	// 基础字段验证
	if dsl.Version == "" {
		errs = append(errs, fmt.Errorf("version is required"))
	}
	if dsl.Name == "" {
		errs = append(errs, fmt.Errorf("name is required"))
	}

	switch dsl.Mode {
	case "", ModeDAG:
		errs = append(errs, v.validateSteps(dsl.Steps, true)...)
	case ModeChain:
		errs = append(errs, v.validateSteps(dsl.Steps, false)...)
	case ModeFanOut:
		errs = append(errs, v.validateFanOut(dsl.FanOut)...)
	default:
		errs = append(errs, fmt.Errorf("invalid mode %q (want dag, chain or fanout)", dsl.Mode))
	}

	errs = append(errs, v.validateAgents(dsl.Agents)...)
	errs = append(errs, v.validateVariables(dsl.Variables)...)
	errs = append(errs, v.validateReferences(dsl)...)

	return errs
}

// validateSteps 验证 dag/chain 步骤
func (v *Validator) validateSteps(steps []StepDef, allowDeps bool) []error {
	var errs []error
	if len(steps) == 0 {
		return []error{fmt.Errorf("steps must have at least one step")}
	}

	names := make(map[string]bool, len(steps))
	for i, s := range steps {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("step %d: name is required", i))
			continue
		}
		if names[s.Name] {
			errs = append(errs, fmt.Errorf("duplicate step name: %s", s.Name))
		}
		names[s.Name] = true
	}

	for _, s := range steps {
		if s.Role == "" {
			errs = append(errs, fmt.Errorf("step %s: role is required", s.Name))
		}
		if s.Task == "" {
			errs = append(errs, fmt.Errorf("step %s: task is required", s.Name))
		}
		if !allowDeps && len(s.DependsOn) > 0 {
			errs = append(errs, fmt.Errorf("step %s: chain steps cannot declare depends_on", s.Name))
			continue
		}
		for _, dep := range s.DependsOn {
			if !names[dep] {
				errs = append(errs, fmt.Errorf("step %s: depends on unknown step %q", s.Name, dep))
			}
		}
	}
	return errs
}

// validateFanOut 验证扇出定义
func (v *Validator) validateFanOut(f *FanOutDef) []error {
	if f == nil {
		return []error{fmt.Errorf("fanout mode requires a fanout section")}
	}
	var errs []error
	if f.Task == "" {
		errs = append(errs, fmt.Errorf("fanout.task is required"))
	}
	if len(f.Roles) == 0 {
		errs = append(errs, fmt.Errorf("fanout.roles must have at least one role"))
	}
	for i, r := range f.Roles {
		if r == "" {
			errs = append(errs, fmt.Errorf("fanout.roles[%d] is empty", i))
		}
	}
	if f.Aggregator == "" {
		errs = append(errs, fmt.Errorf("fanout.aggregator is required"))
	}
	return errs
}

// validateAgents 验证 Agent 定义
func (v *Validator) validateAgents(agents map[string]AgentDef) []error {
	var errs []error
	for role, a := range agents {
		if a.Command == "" {
			errs = append(errs, fmt.Errorf("agent %s: command is required", role))
		}
		for _, kv := range a.Env {
			if !strings.Contains(kv, "=") {
				errs = append(errs, fmt.Errorf("agent %s: env entry %q must be KEY=VALUE", role, kv))
			}
		}
	}
	return errs
}

// validateVariables 验证变量类型
func (v *Validator) validateVariables(vars map[string]VariableDef) []error {
	var errs []error
	validTypes := map[string]bool{"": true, "string": true, "int": true, "float": true, "bool": true}
	for name, def := range vars {
		if !validTypes[def.Type] {
			errs = append(errs, fmt.Errorf("variable %s: invalid type %q", name, def.Type))
		}
	}
	return errs
}

// validateReferences 验证变量插值引用
func (v *Validator) validateReferences(dsl *WorkflowDSL) []error {
	var errs []error
	check := func(where, s string) {
		for _, ref := range extractVariableRefs(s) {
			if _, ok := dsl.Variables[ref]; !ok {
				errs = append(errs, fmt.Errorf("%s: variable %q referenced but not defined", where, ref))
			}
		}
	}

	for _, s := range dsl.Steps {
		check("step "+s.Name, s.Task)
	}
	if dsl.FanOut != nil {
		check("fanout", dsl.FanOut.Task)
	}
	for role, a := range dsl.Agents {
		check("agent "+role, a.Command)
		check("agent "+role, a.Dir)
		for _, arg := range a.Args {
			check("agent "+role, arg)
		}
		for _, kv := range a.Env {
			check("agent "+role, kv)
		}
	}
	return errs
}

// extractVariableRefs 提取 ${var} 引用
func extractVariableRefs(s string) []string {
	var refs []string
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			break
		}
		ref := s[start+2 : start+end]
		refs = append(refs, ref)
		s = s[start+end+1:]
	}
	return refs
}
