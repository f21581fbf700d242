// Package objectstorage provides the object storage bucket node.
package objectstorage

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

// ObjectStorageNode reads and writes objects of a bound bucket.
type ObjectStorageNode struct{}

func NewObjectStorageNode() *ObjectStorageNode {
	return &ObjectStorageNode{}
}

func (n *ObjectStorageNode) Type() string {
	return "object-storage"
}

func (n *ObjectStorageNode) Name() string {
	return "Object Storage"
}

func (n *ObjectStorageNode) Description() string {
	return "Gets, puts, deletes or lists objects of a storage bucket"
}

func (n *ObjectStorageNode) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"bucket":       map[string]any{"type": "string", "description": "Bucket name; becomes the binding name"},
			"operation":    map[string]any{"type": "string", "enum": []string{OperationGet, OperationPut, OperationDelete, OperationList}},
			"key":          map[string]any{"type": "string"},
			"value":        map[string]any{"description": "Object body; objects are stored as JSON"},
			"content_type": map[string]any{"type": "string"},
			"prefix":       map[string]any{"type": "string"},
		},
		"required": []string{"bucket", "operation"},
	}
}

func (n *ObjectStorageNode) Validate(config map[string]any) error {
	_, _, err := parse(config)

	return err
}

func (n *ObjectStorageNode) Generate(ctx *protocol.GenerateContext) (*models.CodegenResult, error) {
	bucket, operation, err := parse(ctx.Config)
	if err != nil {
		return nil, err
	}

	req := models.BindingRequirement{Name: bucket, Type: models.BindingTypeR2}
	binding := "env." + bindings.Name(ctx.WorkflowID, req)

	exprs := map[string]string{}

	for _, field := range []string{"key", "value", "prefix"} {
		raw, ok := ctx.Config[field]
		if !ok {
			continue
		}

		if exprs[field], err = ctx.Expression(field, raw); err != nil {
			return nil, err
		}
	}

	w := codegen.NewWriter()
	codegen.StepDo(w, ctx.StepName, ctx.NodeID, nil, func(w *codegen.Writer) {
		switch operation {
		case OperationGet:
			w.Line("const object = await %s.get(%s);", binding, exprs["key"])
			w.Line("if (object === null) return { found: false };")
			w.Line("const text = await object.text();")
			w.Line("let body = text;")
			w.Line("try { body = JSON.parse(text); } catch (_) {}")
			w.Line("return { found: true, key: object.key, size: object.size, etag: object.etag, body };")
		case OperationPut:
			w.Line("const value = %s;", exprs["value"])
			w.Line(`const payload = typeof value === "string" ? value : JSON.stringify(value);`)
			w.Line("const object = await %s.put(%s, payload, { httpMetadata: { contentType: %s } });",
				binding, exprs["key"], codegen.Quote(ctx.String("content_type", "application/json")))
			w.Line("return { key: object.key, size: object.size, etag: object.etag };")
		case OperationDelete:
			w.Line("await %s.delete(%s);", binding, exprs["key"])
			w.Line("return { deleted: true };")
		case OperationList:
			prefix := exprs["prefix"]
			if prefix == "" {
				prefix = `""`
			}

			w.Line("const listed = await %s.list({ prefix: %s });", binding, prefix)
			w.Line("return { objects: listed.objects.map((o) => ({ key: o.key, size: o.size })), truncated: listed.truncated };")
		}
	})

	return &models.CodegenResult{
		Code:             w.String(),
		RequiredBindings: []models.BindingRequirement{req},
	}, nil
}

func parse(config map[string]any) (bucket, operation string, err error) {
	bucket, ok := config["bucket"].(string)
	if !ok || bucket == "" {
		return "", "", errors.New("missing required field 'bucket'")
	}

	operation, _ = config["operation"].(string)

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
	case OperationList:
	case "":
		return "", "", errors.New("missing required field 'operation'")
	default:
		return "", "", fmt.Errorf("unknown operation '%s'", operation)
	}

	return bucket, operation, nil
}
