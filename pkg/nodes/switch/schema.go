package switchnode

// Schema returns the JSON schema for Switch node configuration.
func (n *SwitchNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"value": map[string]any{
				"description": "Expression to evaluate for switch routing. Supports {{...}} references.",
				"examples": []string{
					"{{start.environment}}",
					"{{fetch.status}}",
					"{{state.classify.label}}",
				},
			},
			"cases": map[string]any{
				"type":        "array",
				"description": "Array of case objects defining value-to-output-port mappings",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"value": map[string]any{
							"type":        "string",
							"description": "Value to match against the evaluated expression",
						},
						"output_port": map[string]any{
							"type":        "string",
							"description": "Output port name to route to when this value matches",
						},
					},
					"required": []string{"value", "output_port"},
				},
				"examples": [][]map[string]any{
					{
						{"value": "production", "output_port": "prod_path"},
						{"value": "staging", "output_port": "staging_path"},
					},
				},
			},
		},
		"required": []string{"value"},
	}
}
