package sleep

import (
	"testing"

	"github.com/dukex/flowforge/pkg/testutil"
	"github.com/dukex/flowforge/pkg/testutil/codegentest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSleepNode(t *testing.T) {
	node := NewSleepNode()

	assert.NoError(t, node.Validate(map[string]any{"duration": "1 hour"}))
	assert.NoError(t, node.Validate(map[string]any{"duration": "30 seconds"}))
	assert.Error(t, node.Validate(map[string]any{"duration": "soon"}))
	assert.Error(t, node.Validate(map[string]any{}))

	def := codegentest.SingleNodeWorkflow(testutil.CreateTestNode("wait", "sleep", testutil.WithConfigValue("duration", "2 days")))

	result, err := node.Generate(codegentest.NewGenerateContext(t, def, "wait"))
	require.NoError(t, err)
	assert.Equal(t, "await step.sleep(\"wait\", \"2 days\");\nsleep_2 = { slept: \"2 days\" };\n", result.Code)
}
