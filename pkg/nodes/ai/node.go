// Package ai provides the AI inference node.
package ai

import (
	"errors"
	"strconv"

	"github.com/dukex/flowforge/pkg/bindings"
	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

// AINode runs a model through the module's inference binding.
type AINode struct{}

func NewAINode() *AINode {
	return &AINode{}
}

func (n *AINode) Type() string {
	return "ai"
}

func (n *AINode) Name() string {
	return "AI Inference"
}

func (n *AINode) Description() string {
	return "Runs a text or chat model with a templated prompt or message list"
}

func (n *AINode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"model": map[string]any{
				"type":     "string",
				"examples": []string{"@cf/meta/llama-3.1-8b-instruct"},
			},
			"prompt": map[string]any{"type": "string", "description": "Prompt, supports {{...}} references"},
			"messages": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"role":    map[string]any{"type": "string", "enum": []string{"system", "user", "assistant"}},
						"content": map[string]any{"type": "string"},
					},
					"required": []string{"role", "content"},
				},
			},
			"max_tokens": map[string]any{"type": "integer", "minimum": 1},
		},
		"required": []string{"model"},
	}
}

func (n *AINode) Validate(config map[string]any) error {
	if model, ok := config["model"].(string); !ok || model == "" {
		return errors.New("missing required field 'model'")
	}

	_, hasPrompt := config["prompt"]
	_, hasMessages := config["messages"]

	if hasPrompt == hasMessages {
		return errors.New("exactly one of 'prompt' or 'messages' is required")
	}

	if hasMessages {
		if _, ok := config["messages"].([]any); !ok {
			return errors.New("field 'messages' must be an array")
		}
	}

	return nil
}

func (n *AINode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	if err := n.Validate(ctx.Config); err != nil {
		return nil, err
	}

	field := "prompt"
	if _, ok := ctx.Config["messages"]; ok {
		field = "messages"
	}

	input, err := ctx.Expression(field, ctx.Config[field])
	if err != nil {
		return nil, err
	}

	options := ""
	if maxTokens, ok := codegen.Int(ctx.Config["max_tokens"]); ok {
		options = ", max_tokens: " + strconv.Itoa(maxTokens)
	}

	req := models.BindingRequirement{Name: bindings.AIBindingName, Type: models.BindingTypeAI}
	opts, _ := codegen.ParseStepOptions(ctx.Config)

	w := codegen.NewWriter()
	codegen.StepDo(w, ctx.StepName, ctx.NodeID, opts, func(w *codegen.Writer) {
		w.Line("const response = await env.%s.run(%s, { %s: %s%s });",
			bindings.AIBindingName, codegen.Quote(ctx.Config["model"].(string)), field, input, options)
		w.Line(`return typeof response === "object" && response !== null ? response : { response };`)
	})

	return &models.CodegenResult{
		Code:             w.String(),
		RequiredBindings: []models.BindingRequirement{req},
	}, nil
}
