package models

import (
	"errors"
	"strings"
)

var (
	ErrGraphValidation  = errors.New("graph validation failed")
	ErrMissingEntryNode = errors.New("missing entry node")
	ErrCycleDetected    = errors.New("cycle detected")
	ErrNodeNotFound     = errors.New("node not found")
	ErrCompilation      = errors.New("compilation failed")
	ErrTemplate         = errors.New("template error")
	ErrBinding          = errors.New("binding error")
)

// WorkflowError attaches node and field context to one of the error kinds above.
type WorkflowError struct {
	Kind    error
	NodeID  string
	Field   string
	Message string
	Err     error
}

func (e *WorkflowError) Error() string {
	var b strings.Builder

	b.WriteString(e.Kind.Error())

	if e.NodeID != "" {
		b.WriteString(": node '" + e.NodeID + "'")
	}

	if e.Field != "" {
		b.WriteString(": field '" + e.Field + "'")
	}

	if e.Message != "" {
		b.WriteString(": " + e.Message)
	}

	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}

	return b.String()
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func (e *WorkflowError) Is(target error) bool {
	return e.Kind == target
}

func NewGraphValidationError(message string) *WorkflowError {
	return &WorkflowError{Kind: ErrGraphValidation, Message: message}
}

func NewCompilationError(nodeID string, err error) *WorkflowError {
	return &WorkflowError{Kind: ErrCompilation, NodeID: nodeID, Err: err}
}

func NewTemplateError(nodeID, field, message string) *WorkflowError {
	return &WorkflowError{Kind: ErrTemplate, NodeID: nodeID, Field: field, Message: message}
}

func NewBindingError(name, message string, err error) *WorkflowError {
	return &WorkflowError{Kind: ErrBinding, Field: name, Message: message, Err: err}
}

// ErrorKind returns a stable snake_case name for the error's kind, used as the
// problem type at the HTTP edge.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrMissingEntryNode):
		return "missing_entry_node"
	case errors.Is(err, ErrCycleDetected):
		return "cycle_detected"
	case errors.Is(err, ErrNodeNotFound):
		return "node_not_found"
	case errors.Is(err, ErrTemplate):
		return "template_error"
	case errors.Is(err, ErrGraphValidation):
		return "graph_validation_error"
	case errors.Is(err, ErrCompilation):
		return "compilation_error"
	case errors.Is(err, ErrBinding):
		return "binding_error"
	default:
		return "internal_error"
	}
}
