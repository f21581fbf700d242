// Package subworkflow provides the node that starts another workflow.
package subworkflow

import (
	"errors"

	"github.com/dukex/flowforge/pkg/bindings"
	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

// SubworkflowNode creates an instance of another deployed workflow.
type SubworkflowNode struct{}

func NewSubworkflowNode() *SubworkflowNode {
	return &SubworkflowNode{}
}

func (n *SubworkflowNode) Type() string {
	return "subworkflow"
}

func (n *SubworkflowNode) Name() string {
	return "Sub-workflow"
}

func (n *SubworkflowNode) Description() string {
	return "Starts an instance of another deployed workflow with templated params"
}

func (n *SubworkflowNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"workflow":    map[string]any{"type": "string", "description": "Name of the target workflow"},
			"class_name":  map[string]any{"type": "string", "description": "Entrypoint class; derived from the name when omitted"},
			"script_name": map[string]any{"type": "string", "description": "Script hosting the workflow; defaults to the workflow name"},
			"params":      map[string]any{"description": "Instance params"},
		},
		"required": []string{"workflow"},
	}
}

func (n *SubworkflowNode) Validate(config map[string]any) error {
	workflow, ok := config["workflow"].(string)
	if !ok || workflow == "" {
		return errors.New("missing required field 'workflow'")
	}

	return nil
}

func (n *SubworkflowNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	if err := n.Validate(ctx.Config); err != nil {
		return nil, err
	}

	workflow := ctx.Config["workflow"].(string)
	req := models.BindingRequirement{
		Name:         workflow,
		Type:         models.BindingTypeWorkflow,
		ResourceName: workflow,
		ClassName:    ctx.String("class_name", models.PascalCase(workflow)+"Workflow"),
		ScriptName:   ctx.String("script_name", workflow),
	}
	binding := "env." + bindings.Name(ctx.WorkflowID, req)

	params := "{}"
	if raw, ok := ctx.Config["params"]; ok {
		var err error
		if params, err = ctx.Expression("params", raw); err != nil {
			return nil, err
		}
	}

	w := codegen.NewWriter()
	codegen.StepDo(w, ctx.StepName, ctx.NodeID, nil, func(w *codegen.Writer) {
		w.Line("const instance = await %s.create({ params: %s });", binding, params)
		w.Line("return { instanceId: instance.id, status: await instance.status() };")
	})

	return &models.CodegenResult{
		Code:             w.String(),
		RequiredBindings: []models.BindingRequirement{req},
	}, nil
}
