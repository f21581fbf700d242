package httprequest

import "strings"

func (n *HTTPRequestNode) Name() string {
	return "HTTP Request"
}

func (n *HTTPRequestNode) Description() string {
	return "Makes HTTP requests to external APIs with durable retries and templated url, headers and body"
}

// Schema returns the JSON schema for HTTP Request node configuration.
func (n *HTTPRequestNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "Request URL. Supports {{...}} references.",
				"examples": []string{
					"https://api.example.com/users/{{start.user_id}}",
					"https://hooks.example.com/notify",
				},
			},
			"method": map[string]any{
				"type":        "string",
				"default":     "GET",
				"description": "HTTP method, case-insensitive",
				"pattern":     "(?i)^(" + strings.Join(methods, "|") + ")$",
				"examples":    methods,
			},
			"headers": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
				"description":          "Request headers",
			},
			"body": map[string]any{
				"description": "Request body. Objects are sent as JSON.",
			},
			"timeout": map[string]any{
				"type":        "string",
				"description": "Step timeout, e.g. \"30 seconds\"",
			},
			"retries": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"attempts": map[string]any{"type": "integer", "minimum": 0, "maximum": 10},
					"delay":    map[string]any{"type": "integer", "minimum": 0, "description": "Delay in milliseconds"},
					"backoff":  map[string]any{"type": "string", "enum": []string{"constant", "linear", "exponential"}},
				},
			},
		},
		"required": []string{"url"},
		"examples": []map[string]any{
			{
				"url":    "https://api.example.com/orders",
				"method": "POST",
				"body":   map[string]any{"id": "{{start.order_id}}"},
				"retries": map[string]any{
					"attempts": 3,
					"delay":    1000,
				},
			},
		},
	}
}
