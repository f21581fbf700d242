// Package entry provides the workflow entry node code generator.
package entry

import (
	"errors"

	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

// EntryNode exposes the workflow instance payload as its result.
type EntryNode struct{}

func NewEntryNode() *EntryNode {
	return &EntryNode{}
}

func (n *EntryNode) Type() string {
	return models.NodeTypeEntry
}

func (n *EntryNode) Name() string {
	return "Entry"
}

func (n *EntryNode) Description() string {
	return "Starts the workflow and exposes the instance payload, merged over optional defaults"
}

func (n *EntryNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"defaults": map[string]any{
				"type":        "object",
				"description": "Values used for payload fields the caller does not provide",
				"examples": []map[string]any{
					{"region": "eu", "limit": 10},
				},
			},
		},
	}
}

// Validate checks the entry configuration.
func (n *EntryNode) Validate(config map[string]any) error {
	if raw, ok := config["defaults"]; ok && raw != nil {
		if _, ok := raw.(map[string]any); !ok {
			return errors.New("field 'defaults' must be an object")
		}
	}

	return nil
}

// Generate emits the payload read.
func (n *EntryNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	if err := n.Validate(ctx.Config); err != nil {
		return nil, err
	}

	w := codegen.NewWriter()

	defaults, ok := ctx.Config["defaults"].(map[string]any)
	if !ok || len(defaults) == 0 {
		w.Line("%s = event?.payload ?? {};", ctx.StepName)

		return &models.CodegenResult{Code: w.String()}, nil
	}

	expr, err := ctx.Expression("defaults", defaults)
	if err != nil {
		return nil, err
	}

	w.Line("%s = { ...%s, ...(event?.payload ?? {}) };", ctx.StepName, expr)

	return &models.CodegenResult{Code: w.String()}, nil
}
