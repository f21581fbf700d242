// Package httprequest provides the HTTP request node code generator.
package httprequest

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

var methods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// HTTPRequestNode calls an HTTP endpoint inside a durable step. The result
// holds status, ok, headers and the body, parsed as JSON when possible.
type HTTPRequestNode struct{}

func NewHTTPRequestNode() *HTTPRequestNode {
	return &HTTPRequestNode{}
}

func (n *HTTPRequestNode) Type() string {
	return "http-request"
}

func (n *HTTPRequestNode) Validate(config map[string]any) error {
	url, ok := config["url"].(string)
	if !ok || url == "" {
		return errors.New("missing required field 'url'")
	}

	if method, ok := config["method"]; ok {
		m, isString := method.(string)
		if !isString || !slices.Contains(methods, strings.ToUpper(m)) {
			return fmt.Errorf("field 'method' must be one of %s", strings.Join(methods, ", "))
		}
	}

	if headers, ok := config["headers"]; ok && headers != nil {
		if _, ok := headers.(map[string]any); !ok {
			return errors.New("field 'headers' must be an object")
		}
	}

	_, err := codegen.ParseStepOptions(config)

	return err
}

func (n *HTTPRequestNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	if err := n.Validate(ctx.Config); err != nil {
		return nil, err
	}

	opts, _ := codegen.ParseStepOptions(ctx.Config)
	method := strings.ToUpper(ctx.String("method", "GET"))

	url, err := ctx.Expression("url", ctx.Config["url"])
	if err != nil {
		return nil, err
	}

	headers := "{}"
	if raw, ok := ctx.Config["headers"].(map[string]any); ok {
		if headers, err = ctx.Expression("headers", raw); err != nil {
			return nil, err
		}
	}

	body := ""
	if raw, ok := ctx.Config["body"]; ok && raw != nil && method != "GET" && method != "HEAD" {
		if body, err = ctx.Expression("body", raw); err != nil {
			return nil, err
		}
	}

	w := codegen.NewWriter()
	codegen.StepDo(w, ctx.StepName, ctx.NodeID, opts, func(w *codegen.Writer) {
		w.Line("const headers = %s;", headers)

		if body != "" {
			w.Line("const payload = %s;", body)
			w.Line(`const isText = typeof payload === "string";`)
			w.Open("if (!isText && !Object.keys(headers).some((h) => h.toLowerCase() === \"content-type\")) {")
			w.Line(`headers["content-type"] = "application/json";`)
			w.Close("}")
			w.Line("const response = await fetch(%s, { method: %s, headers, body: isText ? payload : JSON.stringify(payload) });", url, codegen.Quote(method))
		} else {
			w.Line("const response = await fetch(%s, { method: %s, headers });", url, codegen.Quote(method))
		}

		w.Line("const text = await response.text();")
		w.Line("let body = text;")
		w.Line("try { body = JSON.parse(text); } catch (_) {}")
		w.Open("if (!response.ok) {")
		w.Line("throw new Error(`HTTP ${response.status}: ${text.slice(0, 200)}`);")
		w.Close("}")
		w.Line("return { status: response.status, ok: response.ok, headers: Object.fromEntries(response.headers), body };")
	})

	return &models.CodegenResult{Code: w.String()}, nil
}
