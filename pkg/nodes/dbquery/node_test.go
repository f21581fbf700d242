package dbquery

import (
	"testing"

	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/testutil"
	"github.com/dukex/flowforge/pkg/testutil/codegentest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBQueryNode_Generate(t *testing.T) {
	def := codegentest.SingleNodeWorkflow(testutil.CreateTestNode("lookup", "db-query", testutil.WithConfig(map[string]any{
		"database": "orders-db",
		"query":    "SELECT * FROM orders WHERE id = ?",
		"params":   []any{"{{start.order_id}}"},
		"mode":     "first",
	})))

	result, err := NewDBQueryNode().Generate(codegentest.NewGenerateContext(t, def, "lookup"))
	require.NoError(t, err)

	assert.Equal(t, []models.BindingRequirement{{Name: "orders-db", Type: models.BindingTypeD1}}, result.RequiredBindings)
	assert.Contains(t, result.Code, `const stmt = env.orders_db.prepare("SELECT * FROM orders WHERE id = ?").bind(...[entry?.order_id]);`)
	assert.Contains(t, result.Code, "const row = await stmt.first();")
}

func TestDBQueryNode_Validate(t *testing.T) {
	node := NewDBQueryNode()

	assert.NoError(t, node.Validate(map[string]any{"database": "db", "query": "SELECT 1"}))
	assert.EqualError(t, node.Validate(map[string]any{"query": "SELECT 1"}), "missing required field 'database'")
	assert.EqualError(t, node.Validate(map[string]any{"database": "db", "query": " "}), "missing required field 'query'")
	assert.Error(t, node.Validate(map[string]any{"database": "db", "query": "SELECT {{start.x}}"}))
	assert.Error(t, node.Validate(map[string]any{"database": "db", "query": "SELECT 1", "mode": "many"}))
	assert.Error(t, node.Validate(map[string]any{"database": "db", "query": "SELECT 1", "params": "x"}))
}
