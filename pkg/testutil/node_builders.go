// Package testutil provides test data builders for workflow graphs.
package testutil

import (
	"github.com/dukex/flowforge/pkg/models"
)

// CreateTestNode creates a WorkflowNode with default values that can be overridden.
func CreateTestNode(id, nodeType string, overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:     id,
		Type:   nodeType,
		Config: map[string]any{},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Config = config
	}
}

// WithConfigValue sets a single configuration key.
func WithConfigValue(key string, value any) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		if n.Config == nil {
			n.Config = map[string]any{}
		}

		n.Config[key] = value
	}
}

// CreateTestEdge connects source to target. The edge id is derived from both ends.
func CreateTestEdge(source, target string, overrides ...func(*models.WorkflowEdge)) *models.WorkflowEdge {
	edge := &models.WorkflowEdge{
		ID:     source + "->" + target,
		Source: source,
		Target: target,
	}

	for _, override := range overrides {
		override(edge)
	}

	return edge
}

// WithHandle tags the edge with a branching route.
func WithHandle(handle string) func(*models.WorkflowEdge) {
	return func(e *models.WorkflowEdge) {
		e.SourceHandle = handle
	}
}

// CreateLinearWorkflow chains the given nodes in order.
func CreateLinearWorkflow(id string, nodes ...*models.WorkflowNode) *models.WorkflowDefinition {
	edges := make([]*models.WorkflowEdge, 0, len(nodes))
	for i := 1; i < len(nodes); i++ {
		edges = append(edges, CreateTestEdge(nodes[i-1].ID, nodes[i].ID))
	}

	return &models.WorkflowDefinition{
		ID:    id,
		Name:  id,
		Nodes: nodes,
		Edges: edges,
	}
}

// CreateHTTPWorkflow returns the canonical entry -> http-request -> exit graph.
func CreateHTTPWorkflow(id string) *models.WorkflowDefinition {
	return CreateLinearWorkflow(id,
		CreateTestNode("start", models.NodeTypeEntry),
		CreateTestNode("fetch", "http-request", WithConfig(map[string]any{
			"url":    "https://api.example.com/items/{{start.body.id}}",
			"method": "GET",
		})),
		CreateTestNode("finish", models.NodeTypeExit, WithConfig(map[string]any{
			"value": "{{state.fetch.body}}",
		})),
	)
}
