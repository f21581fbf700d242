// Package dbquery provides the relational database query node.
package dbquery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/flowforge/pkg/bindings"
	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

const (
	ModeAll   = "all"
	ModeFirst = "first"
	ModeRun   = "run"
)

// DBQueryNode runs a prepared statement against a bound relational database.
// The SQL text is never templated; values go through positional params.
type DBQueryNode struct{}

func NewDBQueryNode() *DBQueryNode {
	return &DBQueryNode{}
}

func (n *DBQueryNode) Type() string {
	return "db-query"
}

func (n *DBQueryNode) Name() string {
	return "Database Query"
}

func (n *DBQueryNode) Description() string {
	return "Runs a parameterized SQL statement against a relational database"
}

func (n *DBQueryNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"database": map[string]any{
				"type":        "string",
				"description": "Database name; becomes the binding name",
			},
			"query": map[string]any{
				"type":        "string",
				"description": "SQL with ? placeholders",
				"examples":    []string{"SELECT * FROM orders WHERE id = ?"},
			},
			"params": map[string]any{
				"type":        "array",
				"description": "Positional parameters; strings support {{...}} references",
			},
			"mode": map[string]any{
				"type":    "string",
				"enum":    []string{ModeAll, ModeFirst, ModeRun},
				"default": ModeAll,
			},
		},
		"required": []string{"database", "query"},
	}
}

func (n *DBQueryNode) Validate(config map[string]any) error {
	_, _, _, err := parse(config)

	return err
}

func (n *DBQueryNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	database, query, mode, err := parse(ctx.Config)
	if err != nil {
		return nil, err
	}

	req := models.BindingRequirement{Name: database, Type: models.BindingTypeD1}
	binding := "env." + bindings.Name(ctx.WorkflowID, req)

	params := "[]"
	if raw, ok := ctx.Config["params"]; ok && raw != nil {
		if params, err = ctx.Expression("params", raw); err != nil {
			return nil, err
		}
	}

	opts, _ := codegen.ParseStepOptions(ctx.Config)

	w := codegen.NewWriter()
	codegen.StepDo(w, ctx.StepName, ctx.NodeID, opts, func(w *codegen.Writer) {
		w.Line("const stmt = %s.prepare(%s).bind(...%s);", binding, codegen.Quote(query), params)

		switch mode {
		case ModeFirst:
			w.Line("const row = await stmt.first();")
			w.Line("return { row, found: row !== null };")
		case ModeRun:
			w.Line("const outcome = await stmt.run();")
			w.Line("return { success: outcome.success, meta: outcome.meta };")
		default:
			w.Line("const { results, meta } = await stmt.all();")
			w.Line("return { results, count: results.length, meta };")
		}
	})

	return &models.CodegenResult{
		Code:             w.String(),
		RequiredBindings: []models.BindingRequirement{req},
	}, nil
}

func parse(config map[string]any) (database, query, mode string, err error) {
	database, ok := config["database"].(string)
	if !ok || database == "" {
		return "", "", "", errors.New("missing required field 'database'")
	}

	query, ok = config["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "", "", "", errors.New("missing required field 'query'")
	}

	if strings.Contains(query, "{{") {
		return "", "", "", errors.New("field 'query' must not contain placeholders; use 'params'")
	}

	if raw, ok := config["params"]; ok && raw != nil {
		if _, ok := raw.([]any); !ok {
			return "", "", "", errors.New("field 'params' must be an array")
		}
	}

	mode = ModeAll
	if raw, ok := config["mode"]; ok {
		mode, _ = raw.(string)

		if mode != ModeAll && mode != ModeFirst && mode != ModeRun {
			return "", "", "", fmt.Errorf("unknown mode '%v'", raw)
		}
	}

	if _, err := codegen.ParseStepOptions(config); err != nil {
		return "", "", "", err
	}

	return database, query, mode, nil
}
