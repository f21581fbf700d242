// Package registry holds the node code generators available to the compiler.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

// ErrNodeNotRegistered is returned for node types without a generator.
var ErrNodeNotRegistered = fmt.Errorf("%w: node type not registered", models.ErrNodeNotFound)

// NodeInfo describes a registered node type for catalogs.
type NodeInfo struct {
	Type        string         `json:"type"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
	Branching   bool           `json:"branching"`
}

type registration struct {
	node   protocol.NodeCodegen
	schema *gojsonschema.Schema
}

// Registry maps node type strings to generators. It is built once at startup
// and shared read-only by every compilation.
type Registry struct {
	logger *slog.Logger
	nodes  map[string]registration
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger: log.With("module", "registry"),
		nodes:  make(map[string]registration),
	}
}

// RegisterNode adds a generator, compiling its configuration schema.
func (r *Registry) RegisterNode(node protocol.NodeCodegen) error {
	var compiled *gojsonschema.Schema

	if schema := node.Schema(); len(schema) > 0 {
		var err error

		compiled, err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
		if err != nil {
			return fmt.Errorf("node type '%s': invalid schema: %w", node.Type(), err)
		}
	}

	if _, exists := r.nodes[node.Type()]; exists {
		r.logger.Warn("replacing registered node type", "type", node.Type())
	}

	r.nodes[node.Type()] = registration{node: node, schema: compiled}

	return nil
}

// Node returns the generator for a node type.
func (r *Registry) Node(nodeType string) (protocol.NodeCodegen, error) {
	e, ok := r.nodes[nodeType]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrNodeNotRegistered, nodeType)
	}

	return e.node, nil
}

// ValidateConfig checks a configuration against the node's schema and then
// its own validator.
func (r *Registry) ValidateConfig(nodeType string, config map[string]any) error {
	e, ok := r.nodes[nodeType]
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrNodeNotRegistered, nodeType)
	}

	if config == nil {
		config = map[string]any{}
	}

	if e.schema != nil {
		result, err := e.schema.Validate(gojsonschema.NewGoLoader(config))
		if err != nil {
			return fmt.Errorf("schema validation: %w", err)
		}

		if !result.Valid() {
			messages := make([]string, 0, len(result.Errors()))
			for _, desc := range result.Errors() {
				messages = append(messages, desc.String())
			}

			return errors.New("invalid configuration: " + strings.Join(messages, "; "))
		}
	}

	return e.node.Validate(config)
}

// AvailableNodes lists registered node types sorted by type.
func (r *Registry) AvailableNodes() []NodeInfo {
	infos := make([]NodeInfo, 0, len(r.nodes))

	for _, e := range r.nodes {
		_, branching := e.node.(protocol.Branching)
		infos = append(infos, NodeInfo{
			Type:        e.node.Type(),
			Name:        e.node.Name(),
			Description: e.node.Description(),
			Schema:      e.node.Schema(),
			Branching:   branching,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Type < infos[j].Type })

	return infos
}
