package objectstorage

import (
	"testing"

	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/testutil"
	"github.com/dukex/flowforge/pkg/testutil/codegentest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectStorageNode_GeneratePut(t *testing.T) {
	def := codegentest.SingleNodeWorkflow(testutil.CreateTestNode("archive", "object-storage", testutil.WithConfig(map[string]any{
		"bucket":       "reports",
		"operation":    "put",
		"key":          "reports/{{start.id}}.txt",
		"value":        "{{start.text}}",
		"content_type": "text/plain",
	})))

	result, err := NewObjectStorageNode().Generate(codegentest.NewGenerateContext(t, def, "archive"))
	require.NoError(t, err)

	assert.Equal(t, []models.BindingRequirement{{Name: "reports", Type: models.BindingTypeR2}}, result.RequiredBindings)
	assert.Contains(t, result.Code, "const value = entry?.text;")
	assert.Contains(t, result.Code, "await env.reports.put(`reports/${entry?.id}.txt`, payload, { httpMetadata: { contentType: \"text/plain\" } });")
}

func TestObjectStorageNode_Validate(t *testing.T) {
	node := NewObjectStorageNode()

	assert.NoError(t, node.Validate(map[string]any{"bucket": "b", "operation": "list"}))
	assert.EqualError(t, node.Validate(map[string]any{"bucket": "b"}), "missing required field 'operation'")
	assert.EqualError(t, node.Validate(map[string]any{"bucket": "b", "operation": "get"}), "operation 'get' requires field 'key'")
	assert.EqualError(t, node.Validate(map[string]any{"bucket": "b", "operation": "copy"}), "unknown operation 'copy'")
}
