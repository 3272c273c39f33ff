// =============================================================================
// 📋 测试工作流样例
// =============================================================================
// 提供常用的工作流形状，供执行器、引擎与 CLI 测试复用
// =============================================================================
package fixtures

import "github.com/BaSui01/taskflow/types"

// DesignImplement 两步工作流：implement 依赖 design
func DesignImplement() *types.Workflow {
	return types.NewWorkflow("design-implement",
		types.WorkflowStep{Name: "design", Role: "architect", Task: "design the service"},
		types.WorkflowStep{Name: "implement", Role: "coder", Task: "implement the design", Dependencies: []string{"design"}},
	)
}

// Diamond 菱形 DAG：a → (b, c) → d
func Diamond() *types.Workflow {
	return types.NewWorkflow("diamond",
		types.WorkflowStep{Name: "a", Role: "planner", Task: "plan"},
		types.WorkflowStep{Name: "b", Role: "left", Task: "left branch", Dependencies: []string{"a"}},
		types.WorkflowStep{Name: "c", Role: "right", Task: "right branch", Dependencies: []string{"a"}},
		types.WorkflowStep{Name: "d", Role: "merger", Task: "merge", Dependencies: []string{"b", "c"}},
	)
}

// Cycle 含环工作流：x → y → z → x，外加一个独立步骤 free
func Cycle() *types.Workflow {
	return types.NewWorkflow("cycle",
		types.WorkflowStep{Name: "free", Role: "solo", Task: "independent"},
		types.WorkflowStep{Name: "x", Role: "r", Task: "x", Dependencies: []string{"z"}},
		types.WorkflowStep{Name: "y", Role: "r", Task: "y", Dependencies: []string{"x"}},
		types.WorkflowStep{Name: "z", Role: "r", Task: "z", Dependencies: []string{"y"}},
	)
}

// ChainSteps 三步链 A → B → C
func ChainSteps() []types.WorkflowStep {
	return []types.WorkflowStep{
		{Name: "A", Role: "A", Task: "first"},
		{Name: "B", Role: "B", Task: "second"},
		{Name: "C", Role: "C", Task: "third"},
	}
}
