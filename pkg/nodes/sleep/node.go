// Package sleep provides the durable sleep node.
package sleep

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

var durationPattern = regexp.MustCompile(`^[0-9]+ (second|minute|hour|day|week)s?$`)

// SleepNode suspends the workflow instance without holding compute.
type SleepNode struct{}

func NewSleepNode() *SleepNode {
	return &SleepNode{}
}

func (n *SleepNode) Type() string {
	return "sleep"
}

func (n *SleepNode) Name() string {
	return "Sleep"
}

func (n *SleepNode) Description() string {
	return "Pauses the workflow for a fixed duration"
}

func (n *SleepNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"duration": map[string]any{
				"type":     "string",
				"pattern":  durationPattern.String(),
				"examples": []string{"30 seconds", "1 hour", "2 days"},
			},
		},
		"required": []string{"duration"},
	}
}

func (n *SleepNode) Validate(config map[string]any) error {
	duration, ok := config["duration"].(string)
	if !ok || duration == "" {
		return errors.New("missing required field 'duration'")
	}

	if !durationPattern.MatchString(duration) {
		return fmt.Errorf("invalid duration '%s'", duration)
	}

	return nil
}

func (n *SleepNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	if err := n.Validate(ctx.Config); err != nil {
		return nil, err
	}

	duration := codegen.Quote(ctx.Config["duration"].(string))

	w := codegen.NewWriter()
	w.Line("await step.sleep(%s, %s);", codegen.Quote(ctx.NodeID), duration)
	w.Line("%s = { slept: %s };", ctx.StepName, duration)

	return &models.CodegenResult{Code: w.String()}, nil
}
