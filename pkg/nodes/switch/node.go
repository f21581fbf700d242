// Package switchnode provides the multi-way switch node.
package switchnode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

// OutputPortDefault is taken when no case matches.
const OutputPortDefault = "default"

// SwitchCase maps a value to an output route.
type SwitchCase struct {
	Value      string `json:"value"`
	OutputPort string `json:"output_port"`
}

// SwitchNode routes execution to the output port whose case matches a value.
type SwitchNode struct{}

func NewSwitchNode() *SwitchNode {
	return &SwitchNode{}
}

func (n *SwitchNode) Type() string {
	return "switch"
}

func (n *SwitchNode) Name() string {
	return "Switch"
}

func (n *SwitchNode) Description() string {
	return "Multi-way branching node that routes execution to different paths based on a value match"
}

// DefaultRoute is the fallback port; nodes behind it are not guarded.
func (n *SwitchNode) DefaultRoute() string {
	return OutputPortDefault
}

// Routes returns the case output ports in order, followed by the default port.
func (n *SwitchNode) Routes(config map[string]any) []string {
	cases, err := parseCases(config)
	if err != nil {
		return []string{OutputPortDefault}
	}

	return casePorts(cases)
}

func (n *SwitchNode) Validate(config map[string]any) error {
	_, err := parseCases(config)

	return err
}

func (n *SwitchNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	cases, err := parseCases(ctx.Config)
	if err != nil {
		return nil, err
	}

	expr, err := ctx.Expression("value", ctx.Config["value"])
	if err != nil {
		return nil, err
	}

	mapping := make([]string, 0, len(cases))
	for _, c := range cases {
		mapping = append(mapping, codegen.Quote(c.Value)+": "+codegen.Quote(c.OutputPort))
	}

	ports := casePorts(cases)

	routes := make([]string, 0, len(ports))
	for _, port := range ports {
		routes = append(routes, fmt.Sprintf("%s: matched === %s", codegen.Quote(port), codegen.Quote(port)))
	}

	w := codegen.NewWriter()
	w.Open("%s = (() => {", ctx.StepName)
	w.Line("const value = String(%s);", expr)
	w.Line("const cases = {%s};", strings.Join(mapping, ", "))
	w.Line("const matched = Object.prototype.hasOwnProperty.call(cases, value) ? cases[value] : %s;", codegen.Quote(OutputPortDefault))
	w.Line("return { value, matched, routes: { %s } };", strings.Join(routes, ", "))
	w.Close("})();")

	return &models.CodegenResult{Code: w.String()}, nil
}

func parseCases(config map[string]any) ([]SwitchCase, error) {
	if _, ok := config["value"]; !ok {
		return nil, errors.New("missing required field 'value'")
	}

	raw, ok := config["cases"]
	if !ok || raw == nil {
		return nil, nil
	}

	list, ok := raw.([]any)
	if !ok {
		return nil, errors.New("field 'cases' must be an array")
	}

	cases := make([]SwitchCase, 0, len(list))
	values := map[string]bool{}

	for i, caseAny := range list {
		caseMap, ok := caseAny.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("case %d must be an object", i)
		}

		value, ok := caseMap["value"].(string)
		if !ok {
			return nil, fmt.Errorf("case %d missing 'value'", i)
		}

		port, ok := caseMap["output_port"].(string)
		if !ok || port == "" {
			return nil, fmt.Errorf("case %d missing 'output_port'", i)
		}

		if values[value] {
			return nil, fmt.Errorf("case %d duplicates value '%s'", i, value)
		}

		values[value] = true
		cases = append(cases, SwitchCase{Value: value, OutputPort: port})
	}

	return cases, nil
}

func casePorts(cases []SwitchCase) []string {
	ports := []string{}
	seen := map[string]bool{}

	for _, c := range cases {
		if !seen[c.OutputPort] {
			seen[c.OutputPort] = true
			ports = append(ports, c.OutputPort)
		}
	}

	if !seen[OutputPortDefault] {
		ports = append(ports, OutputPortDefault)
	}

	return ports
}
