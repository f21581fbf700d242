// Package merge provides the merge node that joins several execution paths.
package merge

import (
	"fmt"
	"strings"

	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

const (
	MergeModeAll   = "all"
	MergeModeFirst = "first"
)

// MergeNode combines the results of its upstream nodes. In "all" mode the
// result is an object keyed by upstream node id; in "first" mode it is the
// first upstream result that was produced.
type MergeNode struct{}

func NewMergeNode() *MergeNode {
	return &MergeNode{}
}

func (n *MergeNode) Type() string {
	return "merge"
}

func (n *MergeNode) Name() string {
	return "Merge"
}

func (n *MergeNode) Description() string {
	return "Joins multiple execution paths into one result"
}

func (n *MergeNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"merge_mode": map[string]any{
				"type":        "string",
				"enum":        []string{MergeModeAll, MergeModeFirst},
				"default":     MergeModeAll,
				"description": "How upstream results are combined",
			},
		},
	}
}

func (n *MergeNode) Validate(config map[string]any) error {
	_, err := mergeMode(config)

	return err
}

func (n *MergeNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	mode, err := mergeMode(ctx.Config)
	if err != nil {
		return nil, err
	}

	steps := make([]string, 0, len(ctx.IncomingSources))
	entries := make([]string, 0, len(ctx.IncomingSources))

	for _, source := range ctx.IncomingSources {
		step, ok := ctx.Graph.StepName(source)
		if !ok {
			return nil, fmt.Errorf("unknown upstream node '%s'", source)
		}

		steps = append(steps, step)
		entries = append(entries, codegen.Quote(source)+": "+step)
	}

	w := codegen.NewWriter()

	switch {
	case len(steps) == 0:
		w.Line("%s = null;", ctx.StepName)
	case mode == MergeModeFirst:
		w.Line("%s = [%s].find((value) => value !== undefined) ?? null;", ctx.StepName, strings.Join(steps, ", "))
	default:
		w.Line("%s = {%s};", ctx.StepName, strings.Join(entries, ", "))
	}

	return &models.CodegenResult{Code: w.String()}, nil
}

func mergeMode(config map[string]any) (string, error) {
	raw, ok := config["merge_mode"]
	if !ok || raw == nil {
		return MergeModeAll, nil
	}

	mode, ok := raw.(string)
	if !ok || (mode != MergeModeAll && mode != MergeModeFirst) {
		return "", fmt.Errorf("field 'merge_mode' must be one of %s, %s", MergeModeAll, MergeModeFirst)
	}

	return mode, nil
}
