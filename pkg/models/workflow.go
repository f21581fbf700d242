// Package models defines the core domain models for workflow compilation and deployment.
package models

import "encoding/json"

// Built-in node types with structural meaning to the compiler.
const (
	NodeTypeEntry      = "entry"
	NodeTypeExit       = "exit"
	NodeTypeToolInput  = "tool-input"
	NodeTypeToolOutput = "tool-output"
)

// WorkflowDefinition is the user-authored graph handed to the compiler.
type WorkflowDefinition struct {
	ID    string          `json:"id"              yaml:"id"`
	Name  string          `json:"name,omitempty"  yaml:"name,omitempty"`
	Nodes []*WorkflowNode `json:"nodes"           validate:"required,min=1,dive" yaml:"nodes"`
	Edges []*WorkflowEdge `json:"edges"           validate:"dive"                yaml:"edges"`
}

// WorkflowNode represents a node instance in a workflow graph.
type WorkflowNode struct {
	ID     string         `json:"id"               validate:"required" yaml:"id"`
	Type   string         `json:"type"             validate:"required" yaml:"type"`
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
}

// WorkflowEdge is a directed dependency between two nodes. SourceHandle names
// the output route of a branching source node.
type WorkflowEdge struct {
	ID           string `json:"id"                      yaml:"id"`
	Source       string `json:"source"                  validate:"required" yaml:"source"`
	Target       string `json:"target"                  validate:"required" yaml:"target"`
	SourceHandle string `json:"source_handle,omitempty" yaml:"source_handle,omitempty"`
}

// UnmarshalJSON accepts both source_handle and sourceHandle.
func (e *WorkflowEdge) UnmarshalJSON(data []byte) error {
	type edgeAlias WorkflowEdge

	var raw struct {
		edgeAlias

		CamelHandle string `json:"sourceHandle"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*e = WorkflowEdge(raw.edgeAlias)
	if e.SourceHandle == "" {
		e.SourceHandle = raw.CamelHandle
	}

	return nil
}

// IsEntryNodeType reports whether nodes of the given type start a workflow.
func IsEntryNodeType(nodeType string) bool {
	return nodeType == NodeTypeEntry || nodeType == NodeTypeToolInput
}

// IsExitNodeType reports whether nodes of the given type terminate a workflow.
func IsExitNodeType(nodeType string) bool {
	return nodeType == NodeTypeExit || nodeType == NodeTypeToolOutput
}
