// Package loader reads workflow definitions from JSON, YAML or HCL files.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dukex/flowforge/pkg/models"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

var ErrUnsupportedFormat = errors.New("unsupported workflow format")

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".hcl":
		return FormatHCL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads the workflow definition at path.
func Load(path string) (*models.WorkflowDefinition, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	def, err := Parse(data, format, filepath.Base(path))
	if err != nil {
		return nil, err
	}

	return def, nil
}

// Parse decodes data in the given format. Name is only used in diagnostics.
func Parse(data []byte, format Format, name string) (*models.WorkflowDefinition, error) {
	var (
		def *models.WorkflowDefinition
		err error
	)

	switch format {
	case FormatJSON:
		def, err = parseJSON(data)
	case FormatYAML:
		def, err = parseYAML(data)
	case FormatHCL:
		def, err = parseHCL(data, name)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode %s workflow %s: %w", format, name, err)
	}

	if def.ID == "" {
		def.ID = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	}

	return def, nil
}

func parseJSON(data []byte) (*models.WorkflowDefinition, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var def models.WorkflowDefinition
	if err := decoder.Decode(&def); err != nil {
		return nil, err
	}

	return &def, nil
}

func parseYAML(data []byte) (*models.WorkflowDefinition, error) {
	var def models.WorkflowDefinition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, err
	}

	for _, node := range def.Nodes {
		if node != nil {
			node.Config = normalizeYAML(node.Config)
		}
	}

	return &def, nil
}

// normalizeYAML converts integers to float64 so configs decoded from YAML
// match the ones decoded from JSON.
func normalizeYAML(config map[string]any) map[string]any {
	if config == nil {
		return nil
	}

	out := make(map[string]any, len(config))
	for key, value := range config {
		out[key] = normalizeYAMLValue(value)
	}

	return out
}

func normalizeYAMLValue(value any) any {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case map[string]any:
		return normalizeYAML(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeYAMLValue(item)
		}

		return out
	default:
		return v
	}
}
