package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Value renders an arbitrary configuration value as an expression of the
// generated module. Strings go through Expression; maps are emitted with
// sorted keys so the output is stable.
func (r *Resolver) Value(v any, nodeID, field string) (string, error) {
	switch value := v.(type) {
	case nil:
		return "null", nil
	case string:
		return r.Expression(value, nodeID, field)
	case bool:
		return strconv.FormatBool(value), nil
	case map[string]any:
		keys := sortedKeys(value)
		parts := make([]string, 0, len(keys))

		var errs []error

		for _, key := range keys {
			expr, err := r.Value(value[key], nodeID, joinField(field, key))
			if err != nil {
				errs = append(errs, err)

				continue
			}

			parts = append(parts, quote(key)+": "+expr)
		}

		if len(errs) > 0 {
			return "", errors.Join(errs...)
		}

		return "{" + strings.Join(parts, ", ") + "}", nil
	case []any:
		parts := make([]string, 0, len(value))

		var errs []error

		for i, item := range value {
			expr, err := r.Value(item, nodeID, joinField(field, strconv.Itoa(i)))
			if err != nil {
				errs = append(errs, err)

				continue
			}

			parts = append(parts, expr)
		}

		if len(errs) > 0 {
			return "", errors.Join(errs...)
		}

		return "[" + strings.Join(parts, ", ") + "]", nil
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("field '%s': unsupported value %T: %w", field, v, err)
		}

		return string(encoded), nil
	}
}

// Check walks a node configuration and returns every template error found,
// without stopping at the first.
func (r *Resolver) Check(config map[string]any, nodeID string) []error {
	var errs []error

	for _, key := range sortedKeys(config) {
		errs = append(errs, r.check(config[key], nodeID, key)...)
	}

	return errs
}

func (r *Resolver) check(v any, nodeID, field string) []error {
	switch value := v.(type) {
	case string:
		if !NeedsTemplating(value) {
			return nil
		}

		_, errs := r.resolve(value, nodeID, field)

		return errs
	case map[string]any:
		var errs []error
		for _, key := range sortedKeys(value) {
			errs = append(errs, r.check(value[key], nodeID, joinField(field, key))...)
		}

		return errs
	case []any:
		var errs []error
		for i, item := range value {
			errs = append(errs, r.check(item, nodeID, joinField(field, strconv.Itoa(i)))...)
		}

		return errs
	}

	return nil
}

func joinField(parent, child string) string {
	if parent == "" {
		return child
	}

	return parent + "." + child
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}
