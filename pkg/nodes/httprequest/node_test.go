package httprequest

import (
	"testing"

	"github.com/dukex/flowforge/pkg/testutil"
	"github.com/dukex/flowforge/pkg/testutil/codegentest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRequestNode_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  map[string]any
		wantErr bool
	}{
		{"minimal", map[string]any{"url": "https://example.com"}, false},
		{"lowercase method", map[string]any{"url": "https://example.com", "method": "post"}, false},
		{"missing url", map[string]any{}, true},
		{"bad method", map[string]any{"url": "https://example.com", "method": "FETCH"}, true},
		{"bad headers", map[string]any{"url": "https://example.com", "headers": "x"}, true},
		{"bad retries", map[string]any{"url": "https://example.com", "retries": map[string]any{"attempts": -1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewHTTPRequestNode().Validate(tt.config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHTTPRequestNode_GenerateGet(t *testing.T) {
	def := testutil.CreateHTTPWorkflow("wf")

	result, err := NewHTTPRequestNode().Generate(codegentest.NewGenerateContext(t, def, "fetch"))
	require.NoError(t, err)

	assert.Contains(t, result.Code, `http_request_2 = await step.do("fetch", async () => {`)
	assert.Contains(t, result.Code, "const response = await fetch(`https://api.example.com/items/${entry?.body?.id}`, { method: \"GET\", headers });")
	assert.NotContains(t, result.Code, "payload")
	assert.Empty(t, result.RequiredBindings)
}

func TestHTTPRequestNode_GeneratePostWithRetries(t *testing.T) {
	def := codegentest.SingleNodeWorkflow(testutil.CreateTestNode("post", "http-request", testutil.WithConfig(map[string]any{
		"url":     "https://api.example.com/orders",
		"method":  "post",
		"headers": map[string]any{"authorization": "Bearer {{start.token}}"},
		"body":    map[string]any{"id": "{{start.id}}"},
		"retries": map[string]any{"attempts": 3.0, "delay": 500.0},
	})))

	result, err := NewHTTPRequestNode().Generate(codegentest.NewGenerateContext(t, def, "post"))
	require.NoError(t, err)

	assert.Contains(t, result.Code, `{ retries: { limit: 3, delay: 500, backoff: "exponential" } }`)
	assert.Contains(t, result.Code, "const headers = {\"authorization\": `Bearer ${entry?.token}`};")
	assert.Contains(t, result.Code, `const payload = {"id": entry?.id};`)
	assert.Contains(t, result.Code, `method: "POST"`)
}
