package graph

import (
	"github.com/dukex/flowforge/pkg/models"
)

// Context is the read-only view of a graph shared by every stage of one
// compilation.
type Context struct {
	TopoOrder   []string
	StepNames   map[string]string
	EntryNodeID string
	ExitNodeID  string
	Nodes       []*models.WorkflowNode
	Edges       []*models.WorkflowEdge

	nodes    map[string]*models.WorkflowNode
	position map[string]int
	incoming map[string][]*models.WorkflowEdge
	outgoing map[string][]*models.WorkflowEdge
	byStep   map[string]string
}

// BuildContext sorts the graph, locates the entry node and assigns step names.
func BuildContext(nodes []*models.WorkflowNode, edges []*models.WorkflowEdge) (*Context, error) {
	order, err := TopologicalSort(nodes, edges)
	if err != nil {
		return nil, err
	}

	entryID, err := FindEntryNode(nodes)
	if err != nil {
		return nil, err
	}

	ctx := &Context{
		TopoOrder:   order,
		EntryNodeID: entryID,
		Nodes:       nodes,
		Edges:       edges,
		nodes:       make(map[string]*models.WorkflowNode, len(nodes)),
		position:    make(map[string]int, len(order)),
		incoming:    make(map[string][]*models.WorkflowEdge),
		outgoing:    make(map[string][]*models.WorkflowEdge),
		byStep:      make(map[string]string, len(nodes)),
	}

	types := make(map[string]string, len(nodes))

	for _, node := range nodes {
		ctx.nodes[node.ID] = node
		types[node.ID] = node.Type
	}

	for i, id := range order {
		ctx.position[id] = i
	}

	for _, edge := range edges {
		ctx.incoming[edge.Target] = append(ctx.incoming[edge.Target], edge)
		ctx.outgoing[edge.Source] = append(ctx.outgoing[edge.Source], edge)
	}

	ctx.StepNames = AssignStepNames(order, types, entryID, TerminalNodes(nodes, edges))

	for id, step := range ctx.StepNames {
		ctx.byStep[step] = id

		if step == ExitStepName {
			ctx.ExitNodeID = id
		}
	}

	return ctx, nil
}

// Node looks up a node by id.
func (c *Context) Node(id string) (*models.WorkflowNode, bool) {
	node, ok := c.nodes[id]

	return node, ok
}

// StepName returns the result variable of a node.
func (c *Context) StepName(id string) (string, bool) {
	name, ok := c.StepNames[id]

	return name, ok
}

// NodeForStep resolves a step name back to its node id.
func (c *Context) NodeForStep(step string) (string, bool) {
	id, ok := c.byStep[step]

	return id, ok
}

// Position returns the topological index of a node, or -1.
func (c *Context) Position(id string) int {
	pos, ok := c.position[id]
	if !ok {
		return -1
	}

	return pos
}

func (c *Context) Incoming(id string) []*models.WorkflowEdge {
	return c.incoming[id]
}

func (c *Context) Outgoing(id string) []*models.WorkflowEdge {
	return c.outgoing[id]
}

// IncomingSources lists the distinct source node ids feeding a node, in edge order.
func (c *Context) IncomingSources(id string) []string {
	seen := make(map[string]bool)
	sources := make([]string, 0, len(c.incoming[id]))

	for _, edge := range c.incoming[id] {
		if seen[edge.Source] {
			continue
		}

		seen[edge.Source] = true
		sources = append(sources, edge.Source)
	}

	return sources
}
