// Package conditional provides the two-way branching node.
package conditional

import (
	"errors"

	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

const (
	OutputPortTrue  = "true"
	OutputPortFalse = "false"
)

// ConditionalNode evaluates a condition and exposes which of its true/false
// routes is taken. Strings "false", "0" and "" count as false, matching what
// users type into the editor.
type ConditionalNode struct{}

func NewConditionalNode() *ConditionalNode {
	return &ConditionalNode{}
}

func (n *ConditionalNode) Type() string {
	return "conditional"
}

func (n *ConditionalNode) Name() string {
	return "Conditional"
}

func (n *ConditionalNode) Description() string {
	return "Routes execution to the true or false path depending on a condition"
}

func (n *ConditionalNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"condition": map[string]any{
				"description": "Value to test. Supports {{...}} references to earlier nodes.",
				"examples":    []string{"{{fetch.ok}}", "{{state.check.output.valid}}"},
			},
		},
		"required": []string{"condition"},
	}
}

// DefaultRoute is empty: both routes are guarded.
func (n *ConditionalNode) DefaultRoute() string {
	return ""
}

func (n *ConditionalNode) Routes(config map[string]any) []string {
	return []string{OutputPortTrue, OutputPortFalse}
}

func (n *ConditionalNode) Validate(config map[string]any) error {
	if _, ok := config["condition"]; !ok {
		return errors.New("missing required field 'condition'")
	}

	return nil
}

func (n *ConditionalNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	if err := n.Validate(ctx.Config); err != nil {
		return nil, err
	}

	expr, err := ctx.Expression("condition", ctx.Config["condition"])
	if err != nil {
		return nil, err
	}

	w := codegen.NewWriter()
	w.Open("%s = (() => {", ctx.StepName)
	w.Line("const value = %s;", expr)
	w.Line(`const result = typeof value === "string" ? !["", "false", "0"].includes(value.trim().toLowerCase()) : Boolean(value);`)
	w.Line("return { value, result, routes: { %s: result, %s: !result } };", codegen.Quote(OutputPortTrue), codegen.Quote(OutputPortFalse))
	w.Close("})();")

	return &models.CodegenResult{Code: w.String()}, nil
}
