// Package kv provides the key-value store node.
package kv

import (
	"errors"
	"fmt"

	"github.com/dukex/flowforge/pkg/bindings"
	"github.com/dukex/flowforge/pkg/codegen"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/protocol"
)

const (
	OperationGet    = "get"
	OperationPut    = "put"
	OperationDelete = "delete"
	OperationList   = "list"
)

// KVNode reads and writes a key-value namespace bound to the module.
type KVNode struct{}

func NewKVNode() *KVNode {
	return &KVNode{}
}

func (n *KVNode) Type() string {
	return "kv"
}

func (n *KVNode) Name() string {
	return "Key-Value Store"
}

func (n *KVNode) Description() string {
	return "Gets, puts, deletes or lists keys of a key-value namespace"
}

func (n *KVNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"namespace": map[string]any{
				"type":        "string",
				"description": "Namespace name; becomes the binding name",
				"examples":    []string{"sessions", "cache"},
			},
			"operation": map[string]any{
				"type":    "string",
				"enum":    []string{OperationGet, OperationPut, OperationDelete, OperationList},
				"default": OperationGet,
			},
			"key":            map[string]any{"type": "string", "description": "Key, supports {{...}} references"},
			"value":          map[string]any{"description": "Value to store; objects are stored as JSON"},
			"prefix":         map[string]any{"type": "string", "description": "Key prefix for list"},
			"expiration_ttl": map[string]any{"type": "integer", "minimum": 60},
		},
		"required": []string{"namespace"},
	}
}

func (n *KVNode) Validate(config map[string]any) error {
	_, _, err := parse(config)

	return err
}

func (n *KVNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	namespace, operation, err := parse(ctx.Config)
	if err != nil {
		return nil, err
	}

	req := models.BindingRequirement{Name: namespace, Type: models.BindingTypeKV}
	binding := "env." + bindings.Name(ctx.WorkflowID, req)

	var key, value, prefix string

	if operation != OperationList {
		if key, err = ctx.Expression("key", ctx.Config["key"]); err != nil {
			return nil, err
		}
	} else if raw, ok := ctx.Config["prefix"]; ok {
		if prefix, err = ctx.Expression("prefix", raw); err != nil {
			return nil, err
		}
	}

	if operation == OperationPut {
		if value, err = ctx.Expression("value", ctx.Config["value"]); err != nil {
			return nil, err
		}
	}

	w := codegen.NewWriter()
	codegen.StepDo(w, ctx.StepName, ctx.NodeID, nil, func(w *codegen.Writer) {
		switch operation {
		case OperationGet:
			w.Line("const key = %s;", key)
			w.Line(`const value = await %s.get(key, { type: "json" }).catch(() => %s.get(key));`, binding, binding)
			w.Line("return { key, value, found: value !== null };")
		case OperationPut:
			w.Line("const key = %s;", key)
			w.Line("const value = %s;", value)

			if ttl, ok := codegen.Int(ctx.Config["expiration_ttl"]); ok {
				w.Line(`await %s.put(key, typeof value === "string" ? value : JSON.stringify(value), { expirationTtl: %d });`, binding, ttl)
			} else {
				w.Line(`await %s.put(key, typeof value === "string" ? value : JSON.stringify(value));`, binding)
			}

			w.Line("return { key, stored: true };")
		case OperationDelete:
			w.Line("const key = %s;", key)
			w.Line("await %s.delete(key);", binding)
			w.Line("return { key, deleted: true };")
		case OperationList:
			if prefix == "" {
				prefix = `""`
			}

			w.Line("const listed = await %s.list({ prefix: %s });", binding, prefix)
			w.Line("return { keys: listed.keys.map((k) => k.name), complete: listed.list_complete };")
		}
	})

	return &models.CodegenResult{
		Code:             w.String(),
		RequiredBindings: []models.BindingRequirement{req},
	}, nil
}

func parse(config map[string]any) (namespace, operation string, err error) {
	namespace, ok := config["namespace"].(string)
	if !ok || namespace == "" {
		return "", "", errors.New("missing required field 'namespace'")
	}

	operation = OperationGet
	if raw, ok := config["operation"]; ok {
		operation, _ = raw.(string)
	}

	switch operation {
	case OperationGet, OperationDelete:
		if _, ok := config["key"]; !ok {
			return "", "", fmt.Errorf("operation '%s' requires field 'key'", operation)
		}
	case OperationPut:
		if _, ok := config["key"]; !ok {
			return "", "", errors.New("operation 'put' requires field 'key'")
		}

		if _, ok := config["value"]; !ok {
			return "", "", errors.New("operation 'put' requires field 'value'")
		}

		if raw, ok := config["expiration_ttl"]; ok {
			if ttl, ok := codegen.Int(raw); !ok || ttl < 60 {
				return "", "", errors.New("field 'expiration_ttl' must be an integer of at least 60")
			}
		}
	case OperationList:
	default:
		return "", "", fmt.Errorf("unknown operation '%v'", config["operation"])
	}

	return namespace, operation, nil
}
