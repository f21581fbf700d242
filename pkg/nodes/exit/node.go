// Package exit provides the workflow exit node code generator.
package exit

import (
	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

// ExitNode produces the value a workflow run returns. Without a configured
// value it forwards the result of its first upstream node.
type ExitNode struct{}

func NewExitNode() *ExitNode {
	return &ExitNode{}
}

func (n *ExitNode) Type() string {
	return models.NodeTypeExit
}

func (n *ExitNode) Name() string {
	return "Exit"
}

func (n *ExitNode) Description() string {
	return "Ends the workflow and sets its return value"
}

func (n *ExitNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{
				"description": "Return value. Strings support {{...}} references to earlier nodes.",
				"examples":    []any{"{{state.fetch.body}}", map[string]any{"ok": true, "id": "{{start.id}}"}},
			},
		},
	}
}

func (n *ExitNode) Validate(config map[string]any) error {
	return nil
}

func (n *ExitNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	expr, err := ReturnValue(ctx)
	if err != nil {
		return nil, err
	}

	w := codegen.NewWriter()
	w.Line("%s = %s;", ctx.StepName, expr)

	return &models.CodegenResult{Code: w.String()}, nil
}

// ReturnValue is the expression of the configured value, or of the first
// upstream result when none is configured.
func ReturnValue(ctx *protocol.GenerateContext) (string, error) {
	if value, ok := ctx.Config["value"]; ok {
		return ctx.Expression("value", value)
	}

	for _, source := range ctx.IncomingSources {
		if step, ok := ctx.Graph.StepName(source); ok {
			return step + " ?? null", nil
		}
	}

	return "null", nil
}
