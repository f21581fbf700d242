// Package toolio provides the tool-input and tool-output nodes that make a
// workflow invokable as an external tool.
package toolio

import (
	"errors"

	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/nodes/exit"
	"github.com/dukex/flowforge/pkg/protocol"
)

// RespondHelper is the module helper tool-output calls to hand its value back
// to the session that started the run.
const RespondHelper = "__toolRespond"

// ToolInputNode reads the tool call arguments.
type ToolInputNode struct{}

func NewToolInputNode() *ToolInputNode {
	return &ToolInputNode{}
}

func (n *ToolInputNode) Type() string {
	return models.NodeTypeToolInput
}

func (n *ToolInputNode) Name() string {
	return "Tool Input"
}

func (n *ToolInputNode) Description() string {
	return "Entry point of a workflow exposed as a tool; its result is the call arguments"
}

func (n *ToolInputNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tool_name": map[string]any{
				"type":        "string",
				"description": "Name the tool is advertised under",
			},
			"input_schema": map[string]any{
				"type":        "object",
				"description": "JSON schema of the accepted arguments",
			},
		},
	}
}

func (n *ToolInputNode) Validate(config map[string]any) error {
	if raw, ok := config["input_schema"]; ok && raw != nil {
		if _, ok := raw.(map[string]any); !ok {
			return errors.New("field 'input_schema' must be an object")
		}
	}

	return nil
}

func (n *ToolInputNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	if err := n.Validate(ctx.Config); err != nil {
		return nil, err
	}

	w := codegen.NewWriter()
	w.Line("%s = event?.payload?.arguments ?? event?.payload ?? {};", ctx.StepName)

	return &models.CodegenResult{
		Code:         w.String(),
		Capabilities: []models.Capability{models.CapabilityTool},
	}, nil
}

// ToolOutputNode sets the tool result and reports it to the calling session.
type ToolOutputNode struct{}

func NewToolOutputNode() *ToolOutputNode {
	return &ToolOutputNode{}
}

func (n *ToolOutputNode) Type() string {
	return models.NodeTypeToolOutput
}

func (n *ToolOutputNode) Name() string {
	return "Tool Output"
}

func (n *ToolOutputNode) Description() string {
	return "Returns the tool result to the caller"
}

func (n *ToolOutputNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{
				"description": "Tool result. Defaults to the upstream node result.",
			},
		},
	}
}

func (n *ToolOutputNode) Validate(config map[string]any) error {
	return nil
}

func (n *ToolOutputNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	expr, err := exit.ReturnValue(ctx)
	if err != nil {
		return nil, err
	}

	w := codegen.NewWriter()
	w.Line("%s = %s;", ctx.StepName, expr)
	w.Open("await step.do(%s, async () => {", codegen.Quote(ctx.NodeID+":respond"))
	w.Line("await %s(env, event, %s);", RespondHelper, ctx.StepName)
	w.Line("return null;")
	w.Close("});")

	return &models.CodegenResult{
		Code:         w.String(),
		Capabilities: []models.Capability{models.CapabilityTool},
	}, nil
}
