// Package log provides the structured logging node.
package log

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

var levels = []string{"debug", "info", "warn", "error"}

// LogNode writes one JSON log line and passes the message on as its result.
type LogNode struct{}

func NewLogNode() *LogNode {
	return &LogNode{}
}

func (n *LogNode) Type() string {
	return "log"
}

func (n *LogNode) Name() string {
	return "Log"
}

func (n *LogNode) Description() string {
	return "Logs messages at different levels (debug, info, warn, error) with template support for dynamic content"
}

func (n *LogNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"message": map[string]any{
				"description": "Message to log. Supports {{...}} references.",
				"examples":    []string{"order {{start.id}} received", "{{fetch.body}}"},
			},
			"level": map[string]any{
				"type":    "string",
				"enum":    levels,
				"default": "info",
			},
		},
		"required": []string{"message"},
	}
}

func (n *LogNode) Validate(config map[string]any) error {
	if _, ok := config["message"]; !ok {
		return errors.New("missing required field 'message'")
	}

	if level, ok := config["level"]; ok {
		l, isString := level.(string)
		if !isString || !slices.Contains(levels, l) {
			return fmt.Errorf("field 'level' must be one of %v", levels)
		}
	}

	return nil
}

func (n *LogNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	if err := n.Validate(ctx.Config); err != nil {
		return nil, err
	}

	message, err := ctx.Expression("message", ctx.Config["message"])
	if err != nil {
		return nil, err
	}

	level := ctx.String("level", "info")

	w := codegen.NewWriter()
	w.Line("%s = { level: %s, message: %s };", ctx.StepName, codegen.Quote(level), message)
	w.Line("console.%s(JSON.stringify({ nodeId: %s, ...%s }));", level, codegen.Quote(ctx.NodeID), ctx.StepName)

	return &models.CodegenResult{Code: w.String()}, nil
}
