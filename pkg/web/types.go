package web

import (
	"errors"
	"time"

	"github.com/dukex/flowforge/pkg/compiler"
	"github.com/dukex/flowforge/pkg/models"
)

// WorkflowRequest carries a workflow definition and compile options.
type WorkflowRequest struct {
	Workflow *models.WorkflowDefinition `json:"workflow" validate:"required"`
	Options  compiler.Options           `json:"options"`
}

// ValidationResponse lists every structural and node configuration problem.
type ValidationResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// TemplateIssue is one template problem found in a node's configuration.
type TemplateIssue struct {
	NodeID  string `json:"node_id,omitempty"`
	Field   string `json:"field,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type TemplateCheckResponse struct {
	Valid  bool            `json:"valid"`
	Issues []TemplateIssue `json:"issues"`
}

func newTemplateIssue(err error) TemplateIssue {
	issue := TemplateIssue{Kind: models.ErrorKind(err), Message: err.Error()}

	var typed *models.WorkflowError
	if errors.As(err, &typed) {
		issue.NodeID = typed.NodeID
		issue.Field = typed.Field
	}

	return issue
}

// DeployRequest deploys either an already compiled module or a workflow
// definition that is compiled first.
type DeployRequest struct {
	DeploymentID      string                     `json:"deployment_id,omitempty" validate:"omitempty,max=128"`
	WorkflowID        string                     `json:"workflow_id,omitempty"`
	Compilation       *models.CompilationResult  `json:"compilation,omitempty"   validate:"required_without=Workflow"`
	Workflow          *models.WorkflowDefinition `json:"workflow,omitempty"      validate:"required_without=Compilation"`
	Options           compiler.Options           `json:"options"`
	CompatibilityDate string                     `json:"compatibility_date,omitempty"`
	Params            map[string]any             `json:"params,omitempty"`
}

type DeployResponse struct {
	DeploymentID string                  `json:"deployment_id"`
	Status       models.DeploymentStatus `json:"status"`
}

type RegisterRequest struct {
	DeploymentID string `json:"deployment_id" validate:"required"`
}

type DeploymentListResponse struct {
	Deployments []string `json:"deployments"`
}

// HealthResponse mirrors the readiness payload of the server.
type HealthResponse struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Checkers  map[string]string `json:"checkers"`
	Nodes     int               `json:"nodes"`
	Timestamp time.Time         `json:"timestamp"`
}
