// Package validation performs the structural checks a workflow graph must pass
// before it is analyzed.
package validation

import (
	"fmt"
	"strings"

	"github.com/dukex/flowforge/pkg/models"
)

// Validate runs the node, edge and graph checks in that order and returns the
// first failure.
func Validate(nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) error {
	if err := CheckNodes(nodes); err != nil {
		return err
	}

	if err := CheckEdges(nodes, edges); err != nil {
		return err
	}

	return CheckGraph(nodes)
}

// CheckNodes requires a non-empty node list with unique, non-empty ids.
func CheckNodes(nodes []*models.WorkflowNode) error {
	if len(nodes) == 0 {
		return models.NewGraphValidationError("workflow has no nodes")
	}

	seen := make(map[string]bool, len(nodes))

	for i, node := range nodes {
		if node == nil || strings.TrimSpace(node.ID) == "" {
			return models.NewGraphValidationError(fmt.Sprintf("node at index %d has no id", i))
		}

		if seen[node.ID] {
			return models.NewGraphValidationError(fmt.Sprintf("duplicate node id '%s'", node.ID))
		}

		seen[node.ID] = true
	}

	return nil
}

// CheckEdges requires every edge to connect two distinct existing nodes.
func CheckEdges(nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) error {
	ids := make(map[string]bool, len(nodes))
	for _, node := range nodes {
		ids[node.ID] = true
	}

	for i, edge := range edges {
		if edge == nil {
			return models.NewGraphValidationError(fmt.Sprintf("edge at index %d is empty", i))
		}

		label := edge.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}

		if !ids[edge.Source] {
			return models.NewGraphValidationError(fmt.Sprintf("edge '%s' references unknown source node '%s'", label, edge.Source))
		}

		if !ids[edge.Target] {
			return models.NewGraphValidationError(fmt.Sprintf("edge '%s' references unknown target node '%s'", label, edge.Target))
		}

		if edge.Source == edge.Target {
			return models.NewGraphValidationError(fmt.Sprintf("edge '%s' is a self-loop on node '%s'", label, edge.Source))
		}
	}

	return nil
}

// CheckGraph requires exactly one entry node.
func CheckGraph(nodes []*models.WorkflowNode) error {
	var entries []string

	for _, node := range nodes {
		if models.IsEntryNodeType(node.Type) {
			entries = append(entries, node.ID)
		}
	}

	switch len(entries) {
	case 0:
		return &models.WorkflowError{Kind: models.ErrMissingEntryNode, Message: "workflow needs one entry or tool-input node"}
	case 1:
		return nil
	default:
		return models.NewGraphValidationError(fmt.Sprintf("workflow has %d entry nodes (%s); exactly one is allowed",
			len(entries), strings.Join(entries, ", ")))
	}
}
