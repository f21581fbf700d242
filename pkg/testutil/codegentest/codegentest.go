// Package codegentest builds code generation fixtures for node tests.
package codegentest

import (
	"testing"

	"github.com/dukex/flowforge/pkg/graph"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
	"github.com/dukex/flowforge/pkg/template"
	"github.com/dukex/flowforge/pkg/testutil"
	"github.com/stretchr/testify/require"
)

// NewGenerateContext builds the codegen context a compiler would hand to the
// generator of nodeID, with strict template resolution.
func NewGenerateContext(t testing.TB, def *models.WorkflowDefinition, nodeID string) *protocol.GenerateContext {
	t.Helper()

	g, err := graph.BuildContext(def.Nodes, def.Edges)
	require.NoError(t, err)

	node, ok := g.Node(nodeID)
	require.True(t, ok, "node %s not in workflow", nodeID)

	return &protocol.GenerateContext{
		WorkflowID:      def.ID,
		NodeID:          nodeID,
		Config:          node.Config,
		StepName:        g.StepNames[nodeID],
		IncomingSources: g.IncomingSources(nodeID),
		Graph:           g,
		Templates:       template.NewResolver(g, true),
	}
}

// SingleNodeWorkflow places node between an entry and an exit node.
func SingleNodeWorkflow(node *models.WorkflowNode) *models.WorkflowDefinition {
	return testutil.CreateLinearWorkflow("wf-test",
		testutil.CreateTestNode("start", models.NodeTypeEntry),
		node,
		testutil.CreateTestNode("finish", models.NodeTypeExit),
	)
}
