// Package compiler turns a workflow graph into a deployable module and its
// platform descriptor.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowforge/pkg/bindings"
	"github.com/dukex/flowforge/pkg/graph"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
	"github.com/dukex/flowforge/pkg/template"
	"github.com/dukex/flowforge/pkg/validation"
)

// DefaultCompatibilityDate pins the runtime behavior the generated module is written against.
const DefaultCompatibilityDate = "2024-10-22"

// MainModule is the file name of the generated module inside the descriptor.
const MainModule = "index.js"

// NodeLookup resolves node generators by type.
type NodeLookup interface {
	Node(nodeType string) (protocol.NodeCodegen, error)
	ValidateConfig(nodeType string, config map[string]any) error
}

// Options tune a single compilation. Zero values fall back to the workflow
// definition and the package defaults.
type Options struct {
	WorkflowID        string `json:"workflow_id,omitempty"`
	WorkflowName      string `json:"workflow_name,omitempty"`
	ClassName         string `json:"class_name,omitempty"`
	CompatibilityDate string `json:"compatibility_date,omitempty"`
	// StrictTemplates rejects references to unknown or later nodes. Nil means true.
	StrictTemplates *bool `json:"strict_templates,omitempty"`
}

func (o Options) strict() bool {
	return o.StrictTemplates == nil || *o.StrictTemplates
}

// Compiler is safe for concurrent use; a compilation shares no mutable state
// with any other.
type Compiler struct {
	nodes      NodeLookup
	aggregator *bindings.Aggregator
	logger     *slog.Logger
}

func New(nodes NodeLookup, logger *slog.Logger) *Compiler {
	return &Compiler{
		nodes:      nodes,
		aggregator: bindings.NewAggregator(logger),
		logger:     logger.With("module", "compiler"),
	}
}

// nodeOutput is one generated fragment and how it is wired into the run.
type nodeOutput struct {
	node   *models.WorkflowNode
	step   string
	result *models.CodegenResult
}

// Compile validates the graph, generates every node in topological order and
// assembles the module. On failure it returns a typed error and no result.
func (c *Compiler) Compile(def *models.WorkflowDefinition, opts Options) (*models.CompilationResult, error) {
	if def == nil {
		return nil, models.NewGraphValidationError("workflow definition is required")
	}

	opts = c.resolveOptions(def, opts)
	logger := c.logger.With("workflow_id", opts.WorkflowID)

	if err := validation.Validate(def.Nodes, def.Edges); err != nil {
		logger.Debug("workflow failed validation", "error", err)

		return nil, err
	}

	g, err := graph.BuildContext(def.Nodes, def.Edges)
	if err != nil {
		return nil, err
	}

	resolver := template.NewResolver(g, opts.strict())
	outputs := make([]nodeOutput, 0, len(g.TopoOrder))
	results := make([]bindings.NodeResult, 0, len(g.TopoOrder))

	for _, id := range g.TopoOrder {
		node, _ := g.Node(id)

		result, err := c.generate(g, resolver, opts, node)
		if err != nil {
			logger.Debug("node generation failed", "node_id", id, "node_type", node.Type, "error", err)

			return nil, err
		}

		outputs = append(outputs, nodeOutput{node: node, step: g.StepNames[id], result: result})
		results = append(results, bindings.NodeResult{NodeID: id, Result: result})
	}

	guards, err := c.branchGuards(g)
	if err != nil {
		return nil, err
	}

	configs, err := c.aggregator.Aggregate(bindings.Options{
		WorkflowID:   opts.WorkflowID,
		WorkflowName: opts.WorkflowName,
		ClassName:    opts.ClassName,
	}, results)
	if err != nil {
		return nil, err
	}

	source := assemble(moduleInput{
		opts:     opts,
		graph:    g,
		outputs:  outputs,
		guards:   guards,
		bindings: configs,
	})

	logger.Info("workflow compiled", "nodes", len(outputs), "bindings", len(configs), "class_name", opts.ClassName)

	return &models.CompilationResult{
		SourceCode:     source,
		Bindings:       configs,
		ClassName:      opts.ClassName,
		WorkflowName:   opts.WorkflowName,
		PlatformConfig: BuildPlatformConfig(opts.WorkflowName, opts.ClassName, opts.CompatibilityDate, configs),
		Status:         models.CompilationStatusSuccess,
	}, nil
}

func (c *Compiler) generate(g *graph.Context, resolver *template.Resolver, opts Options, node *models.WorkflowNode) (*models.CodegenResult, error) {
	gen, err := c.nodes.Node(node.Type)
	if err != nil {
		return nil, &models.WorkflowError{Kind: models.ErrNodeNotFound, NodeID: node.ID, Err: err}
	}

	config := node.Config
	if config == nil {
		config = map[string]any{}
	}

	if err := c.nodes.ValidateConfig(node.Type, config); err != nil {
		return nil, models.NewCompilationError(node.ID, err)
	}

	result, err := gen.Generate(&protocol.GenerateContext{
		WorkflowID:      opts.WorkflowID,
		NodeID:          node.ID,
		Config:          config,
		StepName:        g.StepNames[node.ID],
		IncomingSources: g.IncomingSources(node.ID),
		Graph:           g,
		Templates:       resolver,
	})
	if err != nil {
		var typed *models.WorkflowError
		if errors.As(err, &typed) {
			return nil, err
		}

		return nil, models.NewCompilationError(node.ID, err)
	}

	if result == nil {
		return nil, models.NewCompilationError(node.ID, errors.New("generator returned no code"))
	}

	return result, nil
}

// Validate checks the graph and every node's type and configuration without
// generating code. A structural problem is returned alone; node problems are
// all collected.
func (c *Compiler) Validate(def *models.WorkflowDefinition) []error {
	if def == nil {
		return []error{models.NewGraphValidationError("workflow definition is required")}
	}

	if err := validation.Validate(def.Nodes, def.Edges); err != nil {
		return []error{err}
	}

	g, err := graph.BuildContext(def.Nodes, def.Edges)
	if err != nil {
		return []error{err}
	}

	var errs []error

	for _, id := range g.TopoOrder {
		node, _ := g.Node(id)

		if _, err := c.nodes.Node(node.Type); err != nil {
			errs = append(errs, &models.WorkflowError{Kind: models.ErrNodeNotFound, NodeID: id, Err: err})

			continue
		}

		config := node.Config
		if config == nil {
			config = map[string]any{}
		}

		if err := c.nodes.ValidateConfig(node.Type, config); err != nil {
			errs = append(errs, models.NewCompilationError(id, err))
		}
	}

	return errs
}

// CheckTemplates reports every template problem across all nodes without
// generating code. Structural problems are returned as the only error.
func (c *Compiler) CheckTemplates(def *models.WorkflowDefinition, opts Options) []error {
	if def == nil {
		return []error{models.NewGraphValidationError("workflow definition is required")}
	}

	if err := validation.Validate(def.Nodes, def.Edges); err != nil {
		return []error{err}
	}

	g, err := graph.BuildContext(def.Nodes, def.Edges)
	if err != nil {
		return []error{err}
	}

	resolver := template.NewResolver(g, opts.strict())

	var errs []error

	for _, id := range g.TopoOrder {
		node, _ := g.Node(id)
		errs = append(errs, resolver.Check(node.Config, id)...)
	}

	return errs
}

func (c *Compiler) resolveOptions(def *models.WorkflowDefinition, opts Options) Options {
	if opts.WorkflowID == "" {
		opts.WorkflowID = def.ID
	}

	if opts.WorkflowName == "" {
		opts.WorkflowName = def.Name
	}

	if opts.WorkflowName == "" {
		opts.WorkflowName = opts.WorkflowID
	}

	opts.WorkflowName = WorkerName(opts.WorkflowName)

	if opts.ClassName == "" {
		opts.ClassName = ClassName(def)
	} else {
		opts.ClassName = models.SanitizeIdentifier(opts.ClassName)
	}

	if opts.CompatibilityDate == "" {
		opts.CompatibilityDate = DefaultCompatibilityDate
	}

	return opts
}

// ClassName derives the exported workflow class from the workflow name, or
// its id when unnamed.
func ClassName(def *models.WorkflowDefinition) string {
	base := def.Name
	if strings.TrimSpace(base) == "" {
		base = def.ID
	}

	return models.PascalCase(base) + "Workflow"
}

// WorkerName lowercases a name into the alphabet the platform accepts for
// scripts and workflows.
func WorkerName(name string) string {
	var b strings.Builder

	dash := false

	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)

			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')

			dash = true
		}
	}

	out := strings.TrimRight(b.String(), "-")
	if out == "" {
		return "workflow"
	}

	return out
}

// guard decides whether a node runs. Route guards check a branch result;
// upstream guards skip a node when everything feeding it was skipped.
type guard struct {
	source   string
	sourceID string
	route    string
	upstream []string
}

// branchGuards validates every routed edge and computes the guard of each
// node that may not run.
func (c *Compiler) branchGuards(g *graph.Context) (map[string]*guard, error) {
	guards := make(map[string]*guard)

	for _, id := range g.TopoOrder {
		for _, edge := range g.Outgoing(id) {
			if edge.SourceHandle == "" {
				continue
			}

			if _, err := c.routeOf(g, edge); err != nil {
				return nil, err
			}
		}
	}

	for _, id := range g.TopoOrder {
		incoming := g.Incoming(id)

		if len(incoming) == 1 {
			edge := incoming[0]

			branching, err := c.routeOf(g, edge)
			if err != nil {
				return nil, err
			}

			if branching != nil && edge.SourceHandle != "" && edge.SourceHandle != branching.DefaultRoute() {
				guards[id] = &guard{source: g.StepNames[edge.Source], sourceID: edge.Source, route: edge.SourceHandle}

				continue
			}
		}

		sources := g.IncomingSources(id)
		if len(sources) == 0 {
			continue
		}

		skippable := true

		for _, source := range sources {
			if guards[source] == nil {
				skippable = false

				break
			}
		}

		if skippable {
			guards[id] = &guard{upstream: sources}
		}
	}

	return guards, nil
}

// routeOf returns the branching generator behind an edge, or nil for a plain
// source. A handle the source cannot produce is a compilation error.
func (c *Compiler) routeOf(g *graph.Context, edge *models.WorkflowEdge) (protocol.Branching, error) {
	source, _ := g.Node(edge.Source)

	gen, err := c.nodes.Node(source.Type)
	if err != nil {
		return nil, &models.WorkflowError{Kind: models.ErrNodeNotFound, NodeID: source.ID, Err: err}
	}

	branching, ok := gen.(protocol.Branching)
	if !ok {
		return nil, nil
	}

	if edge.SourceHandle == "" {
		return branching, nil
	}

	for _, route := range branching.Routes(source.Config) {
		if route == edge.SourceHandle {
			return branching, nil
		}
	}

	return nil, &models.WorkflowError{
		Kind:    models.ErrCompilation,
		NodeID:  source.ID,
		Message: fmt.Sprintf("edge '%s' uses unknown route '%s'", edge.ID, edge.SourceHandle),
	}
}
