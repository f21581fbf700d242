package ai

import (
	"testing"

	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/testutil"
	"github.com/dukex/flowforge/pkg/testutil/codegentest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAINode_Generate(t *testing.T) {
	def := codegentest.SingleNodeWorkflow(testutil.CreateTestNode("summarize", "ai", testutil.WithConfig(map[string]any{
		"model":      "@cf/meta/llama-3.1-8b-instruct",
		"prompt":     "Summarize: {{start.text}}",
		"max_tokens": 256.0,
	})))

	result, err := NewAINode().Generate(codegentest.NewGenerateContext(t, def, "summarize"))
	require.NoError(t, err)

	assert.Equal(t, []models.BindingRequirement{{Name: "AI", Type: models.BindingTypeAI}}, result.RequiredBindings)
	assert.Contains(t, result.Code, "const response = await env.AI.run(\"@cf/meta/llama-3.1-8b-instruct\", { prompt: `Summarize: ${entry?.text}`, max_tokens: 256 });")
}

func TestAINode_Validate(t *testing.T) {
	node := NewAINode()

	assert.NoError(t, node.Validate(map[string]any{"model": "m", "prompt": "p"}))
	assert.NoError(t, node.Validate(map[string]any{"model": "m", "messages": []any{}}))
	assert.EqualError(t, node.Validate(map[string]any{"prompt": "p"}), "missing required field 'model'")
	assert.Error(t, node.Validate(map[string]any{"model": "m"}))
	assert.Error(t, node.Validate(map[string]any{"model": "m", "prompt": "p", "messages": []any{}}))
	assert.Error(t, node.Validate(map[string]any{"model": "m", "messages": "x"}))
}
