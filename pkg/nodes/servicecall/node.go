// Package servicecall provides the node that calls another deployed service
// through a service binding.
package servicecall

import (
	"errors"
	"strings"

	"github.com/dukex/flowforge/pkg/bindings"
	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

// ServiceCallNode sends a request to a bound service without leaving the platform.
type ServiceCallNode struct{}

func NewServiceCallNode() *ServiceCallNode {
	return &ServiceCallNode{}
}

func (n *ServiceCallNode) Type() string {
	return "service-call"
}

func (n *ServiceCallNode) Name() string {
	return "Service Call"
}

func (n *ServiceCallNode) Description() string {
	return "Calls another deployed service through a service binding"
}

func (n *ServiceCallNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"service": map[string]any{"type": "string", "description": "Name of the deployed service"},
			"path":    map[string]any{"type": "string", "default": "/"},
			"method":  map[string]any{"type": "string", "default": "POST"},
			"body":    map[string]any{"description": "Request body, sent as JSON"},
		},
		"required": []string{"service"},
	}
}

func (n *ServiceCallNode) Validate(config map[string]any) error {
	service, ok := config["service"].(string)
	if !ok || service == "" {
		return errors.New("missing required field 'service'")
	}

	if path, ok := config["path"].(string); ok && !strings.HasPrefix(path, "/") {
		return errors.New("field 'path' must start with '/'")
	}

	_, err := codegen.ParseStepOptions(config)

	return err
}

func (n *ServiceCallNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	if err := n.Validate(ctx.Config); err != nil {
		return nil, err
	}

	service := ctx.Config["service"].(string)
	req := models.BindingRequirement{Name: service, Type: models.BindingTypeService, ResourceName: service}
	binding := "env." + bindings.Name(ctx.WorkflowID, req)

	path, err := ctx.Expression("path", ctx.String("path", "/"))
	if err != nil {
		return nil, err
	}

	body := "null"
	if raw, ok := ctx.Config["body"]; ok {
		if body, err = ctx.Expression("body", raw); err != nil {
			return nil, err
		}
	}

	method := strings.ToUpper(ctx.String("method", "POST"))
	opts, _ := codegen.ParseStepOptions(ctx.Config)

	w := codegen.NewWriter()
	codegen.StepDo(w, ctx.StepName, ctx.NodeID, opts, func(w *codegen.Writer) {
		w.Line("const url = new URL(%s, %s);", path, codegen.Quote("https://"+service))

		if method == "GET" || method == "HEAD" {
			w.Line("const response = await %s.fetch(url, { method: %s });", binding, codegen.Quote(method))
		} else {
			w.Line(`const response = await %s.fetch(url, { method: %s, headers: { "content-type": "application/json" }, body: JSON.stringify(%s) });`,
				binding, codegen.Quote(method), body)
		}

		w.Line("const text = await response.text();")
		w.Line("let data = text;")
		w.Line("try { data = JSON.parse(text); } catch (_) {}")
		w.Line("if (!response.ok) throw new Error(%s + response.status);", codegen.Quote("service "+service+" responded "))
		w.Line("return { status: response.status, data };")
	})

	return &models.CodegenResult{
		Code:             w.String(),
		RequiredBindings: []models.BindingRequirement{req},
	}, nil
}
