package loader

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"

	"github.com/dukex/flowforge/pkg/models"
)

// hclWorkflowFile is the top-level structure of an HCL workflow:
//
//	id   = "order-router"
//	name = "Order Router"
//
//	node "start" {
//	  type = "entry"
//	}
//
//	node "fetch" {
//	  type   = "http-request"
//	  config = { url = "https://api.example.com/{{start.body.id}}" }
//	}
//
//	edge {
//	  source = "start"
//	  target = "fetch"
//	}
type hclWorkflowFile struct {
	ID    string     `hcl:"id,optional"`
	Name  string     `hcl:"name,optional"`
	Nodes []*hclNode `hcl:"node,block"`
	Edges []*hclEdge `hcl:"edge,block"`
}

type hclNode struct {
	ID     string    `hcl:"id,label"`
	Type   string    `hcl:"type"`
	Config cty.Value `hcl:"config,optional"`
}

type hclEdge struct {
	ID     string `hcl:"id,optional"`
	Source string `hcl:"source"`
	Target string `hcl:"target"`
	Handle string `hcl:"handle,optional"`
}

func parseHCL(data []byte, name string) (*models.WorkflowDefinition, error) {
	parser := hclparse.NewParser()

	file, diags := parser.ParseHCL(data, name)
	if diags.HasErrors() {
		return nil, diags
	}

	var parsed hclWorkflowFile

	diags = gohcl.DecodeBody(file.Body, nil, &parsed)
	if diags.HasErrors() {
		return nil, diags
	}

	def := &models.WorkflowDefinition{
		ID:    parsed.ID,
		Name:  parsed.Name,
		Nodes: make([]*models.WorkflowNode, 0, len(parsed.Nodes)),
		Edges: make([]*models.WorkflowEdge, 0, len(parsed.Edges)),
	}

	for _, node := range parsed.Nodes {
		config, err := configFromCty(node.Config)
		if err != nil {
			return nil, fmt.Errorf("node %q: %w", node.ID, err)
		}

		def.Nodes = append(def.Nodes, &models.WorkflowNode{ID: node.ID, Type: node.Type, Config: config})
	}

	for _, edge := range parsed.Edges {
		def.Edges = append(def.Edges, &models.WorkflowEdge{
			ID:           edge.ID,
			Source:       edge.Source,
			Target:       edge.Target,
			SourceHandle: edge.Handle,
		})
	}

	return def, nil
}

// configFromCty converts an object value to the same shape JSON decoding
// produces.
func configFromCty(value cty.Value) (map[string]any, error) {
	if value.IsNull() {
		return map[string]any{}, nil
	}

	if !value.Type().IsObjectType() && !value.Type().IsMapType() {
		return nil, fmt.Errorf("config must be an object, got %s", value.Type().FriendlyName())
	}

	if !value.IsWhollyKnown() {
		return nil, errors.New("config must not contain unknown values")
	}

	raw, err := ctyjson.SimpleJSONValue{Value: value}.MarshalJSON()
	if err != nil {
		return nil, err
	}

	var config map[string]any
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, err
	}

	return config, nil
}
