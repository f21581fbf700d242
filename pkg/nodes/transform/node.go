// Package transform provides the data transformation node.
package transform

import (
	"errors"

	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

// TransformNode builds a new value out of earlier results. It runs inline,
// outside any durable step.
type TransformNode struct{}

func NewTransformNode() *TransformNode {
	return &TransformNode{}
}

func (n *TransformNode) Type() string {
	return "transform"
}

func (n *TransformNode) Name() string {
	return "Transform"
}

func (n *TransformNode) Description() string {
	return "Shapes data from earlier nodes into a new object, list or string"
}

func (n *TransformNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mapping": map[string]any{
				"description": "Output value. Strings at any depth support {{...}} references.",
				"examples": []any{
					map[string]any{"name": "{{fetch.body.name}}", "tags": []any{"{{start.tag}}"}},
					"Hello {{start.name}}",
				},
			},
		},
		"required": []string{"mapping"},
	}
}

func (n *TransformNode) Validate(config map[string]any) error {
	if _, ok := config["mapping"]; !ok {
		return errors.New("missing required field 'mapping'")
	}

	return nil
}

func (n *TransformNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	if err := n.Validate(ctx.Config); err != nil {
		return nil, err
	}

	expr, err := ctx.Expression("mapping", ctx.Config["mapping"])
	if err != nil {
		return nil, err
	}

	w := codegen.NewWriter()
	w.Line("%s = %s;", ctx.StepName, expr)

	return &models.CodegenResult{Code: w.String()}, nil
}
