// Package protocol defines the interfaces and contracts for pluggable node code generators.
package protocol

import (
	"github.com/dukex/flowforge/pkg/graph"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/template"
)

// NodeCodegen turns one node type's configuration into a fragment of the
// generated module. Implementations must be pure: the only effect of Generate
// is its return value.
type NodeCodegen interface {
	// Type returns the node type string this generator is registered under
	Type() string

	// Name returns the human-readable name for this node type
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for configuring this node
	Schema() map[string]any

	// Validate checks configuration constraints the schema cannot express
	Validate(config map[string]any) error

	// Generate emits code that assigns the node result to ctx.StepName. The
	// fragment may read only env, event, step, state and the result variables
	// of nodes that run earlier.
	Generate(ctx *GenerateContext) (*models.CodegenResult, error)
}

// Branching is implemented by nodes with several named output routes. Their
// result carries a routes object mapping each route to a boolean.
type Branching interface {
	// Routes lists the route names the configured node can take
	Routes(config map[string]any) []string

	// DefaultRoute names the route whose edges are not guarded. An empty
	// string means only edges without a handle are unguarded.
	DefaultRoute() string
}

// GenerateContext is everything a generator may consult for one node.
type GenerateContext struct {
	WorkflowID      string
	NodeID          string
	Config          map[string]any
	StepName        string
	IncomingSources []string
	Graph           *graph.Context
	Templates       *template.Resolver
}

// Expression resolves a configuration value of this node as an expression of
// the generated module.
func (c *GenerateContext) Expression(field string, value any) (string, error) {
	return c.Templates.Value(value, c.NodeID, field)
}

// String returns a string config field, or def when absent.
func (c *GenerateContext) String(field, def string) string {
	if v, ok := c.Config[field].(string); ok && v != "" {
		return v
	}

	return def
}
