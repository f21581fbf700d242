// Package graph implements the structural analysis of workflow graphs: ordering,
// entry discovery and stable step naming.
package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dukex/flowforge/pkg/models"
)

const (
	EntryStepName = "entry"
	ExitStepName  = "exit"
)

// TopologicalSort orders nodes with Kahn's algorithm. Ties are broken by the
// input order of nodes and edges so the result is reproducible.
func TopologicalSort(nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) ([]string, error) {
	indegree := make(map[string]int, len(nodes))
	outgoing := make(map[string][]string, len(nodes))

	for _, node := range nodes {
		indegree[node.ID] = 0
	}

	for _, edge := range edges {
		if _, ok := indegree[edge.Source]; !ok {
			return nil, &models.WorkflowError{Kind: models.ErrNodeNotFound, NodeID: edge.Source, Message: "edge '" + edge.ID + "' references unknown source"}
		}

		if _, ok := indegree[edge.Target]; !ok {
			return nil, &models.WorkflowError{Kind: models.ErrNodeNotFound, NodeID: edge.Target, Message: "edge '" + edge.ID + "' references unknown target"}
		}

		outgoing[edge.Source] = append(outgoing[edge.Source], edge.Target)
		indegree[edge.Target]++
	}

	queue := make([]string, 0, len(nodes))

	for _, node := range nodes {
		if indegree[node.ID] == 0 {
			queue = append(queue, node.ID)
		}
	}

	order := make([]string, 0, len(nodes))

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		order = append(order, current)

		for _, next := range outgoing[current] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) < len(nodes) {
		return nil, &models.WorkflowError{
			Kind:    models.ErrCycleDetected,
			Message: fmt.Sprintf("%d of %d nodes are part of or depend on a cycle", len(nodes)-len(order), len(nodes)),
		}
	}

	return order, nil
}

// FindEntryNode returns the first node whose type starts a workflow.
func FindEntryNode(nodes []*models.WorkflowNode) (string, error) {
	for _, node := range nodes {
		if models.IsEntryNodeType(node.Type) {
			return node.ID, nil
		}
	}

	return "", &models.WorkflowError{Kind: models.ErrMissingEntryNode, Message: "workflow has no entry or tool-input node"}
}

// TerminalNodes returns the ids of nodes without outgoing edges, in input order.
func TerminalNodes(nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) []string {
	hasOutgoing := make(map[string]bool, len(edges))
	for _, edge := range edges {
		hasOutgoing[edge.Source] = true
	}

	terminals := make([]string, 0)

	for _, node := range nodes {
		if !hasOutgoing[node.ID] {
			terminals = append(terminals, node.ID)
		}
	}

	return terminals
}

// AssignStepNames gives every node the identifier its result is stored under
// in generated code. The entry node is "entry", the exit-shaped terminal that
// comes last in topological order is "exit", and every other node is named
// after its type and 1-based topological position, e.g. "http_request_2".
// Exit-shaped nodes that are not that last terminal get the positional form.
func AssignStepNames(topoOrder []string, nodeTypes map[string]string, entryID string, terminalIDs []string) map[string]string {
	position := make(map[string]int, len(topoOrder))
	for i, id := range topoOrder {
		position[id] = i
	}

	exitID := ""
	exitPos := -1

	for _, id := range terminalIDs {
		pos, ok := position[id]
		if !ok || id == entryID || !models.IsExitNodeType(nodeTypes[id]) {
			continue
		}

		if pos > exitPos {
			exitID, exitPos = id, pos
		}
	}

	names := make(map[string]string, len(topoOrder))

	for i, id := range topoOrder {
		switch id {
		case entryID:
			names[id] = EntryStepName
		case exitID:
			names[id] = ExitStepName
		default:
			names[id] = stepPrefix(nodeTypes[id]) + "_" + strconv.Itoa(i+1)
		}
	}

	return names
}

func stepPrefix(nodeType string) string {
	prefix := strings.ToLower(models.SanitizeIdentifier(nodeType))
	if prefix == "_" {
		return "node"
	}

	return prefix
}
