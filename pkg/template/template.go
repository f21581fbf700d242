// Package template rewrites {{...}} placeholders in node configuration into
// expressions of the generated module that read upstream node results.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dukex/flowforge/pkg/graph"
	"github.com/dukex/flowforge/pkg/models"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"

	// StateMarker prefixes placeholders that address a node's state record by id.
	StateMarker = "state."

	// DefaultField is read from a state record when no field path is given.
	DefaultField = "output"
)

var (
	identifierSegment = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)
	pathSegment       = regexp.MustCompile(`^[A-Za-z0-9_$-]+$`)
	indexSegment      = regexp.MustCompile(`^[0-9]+$`)
)

// NeedsTemplating reports whether a string contains a placeholder.
func NeedsTemplating(input string) bool {
	return strings.Contains(input, openDelim)
}

// Resolver resolves placeholders against one compilation's graph.
type Resolver struct {
	graph  *graph.Context
	strict bool
}

// NewResolver creates a resolver. In strict mode references that cannot be
// tied to a node preceding the referencing node are errors.
func NewResolver(g *graph.Context, strict bool) *Resolver {
	return &Resolver{graph: g, strict: strict}
}

// Strict reports whether unresolved references are errors.
func (r *Resolver) Strict() bool {
	return r.strict
}

// Resolve returns the body of a template literal equivalent to value: literal
// text escaped, placeholders replaced by ${expr} segments. Values without a
// placeholder are returned unchanged.
func (r *Resolver) Resolve(value, nodeID string) (string, error) {
	if !NeedsTemplating(value) {
		return value, nil
	}

	out, errs := r.resolve(value, nodeID, "")

	return out, errors.Join(errs...)
}

// Reference resolves the inner expression of a single placeholder.
func (r *Resolver) Reference(expr, nodeID string) (string, error) {
	return r.reference(strings.TrimSpace(expr), nodeID, "")
}

// Expression returns a complete expression for value: a string literal when it
// holds no placeholder, the bare reference when the whole value is one
// placeholder (keeping its runtime type), otherwise a template literal.
func (r *Resolver) Expression(value, nodeID, field string) (string, error) {
	if !NeedsTemplating(value) {
		return quote(value), nil
	}

	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, openDelim) && strings.HasSuffix(trimmed, closeDelim) &&
		strings.Count(trimmed, openDelim) == 1 && strings.Count(trimmed, closeDelim) == 1 {
		inner := strings.TrimSpace(trimmed[len(openDelim) : len(trimmed)-len(closeDelim)])

		return r.reference(inner, nodeID, field)
	}

	body, errs := r.resolve(value, nodeID, field)
	if len(errs) > 0 {
		return "", errors.Join(errs...)
	}

	return "`" + body + "`", nil
}

func (r *Resolver) resolve(value, nodeID, field string) (string, []error) {
	var (
		b    strings.Builder
		errs []error
	)

	rest := value

	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			b.WriteString(escapeLiteral(rest))

			break
		}

		b.WriteString(escapeLiteral(rest[:start]))

		end := strings.Index(rest[start+len(openDelim):], closeDelim)
		if end < 0 {
			errs = append(errs, models.NewTemplateError(nodeID, field, fmt.Sprintf("unterminated placeholder in %q", value)))
			b.WriteString(escapeLiteral(rest[start:]))

			break
		}

		inner := strings.TrimSpace(rest[start+len(openDelim) : start+len(openDelim)+end])

		expr, err := r.reference(inner, nodeID, field)
		if err != nil {
			errs = append(errs, err)
			b.WriteString(escapeLiteral(rest[start : start+len(openDelim)+end+len(closeDelim)]))
		} else {
			b.WriteString("${" + expr + "}")
		}

		rest = rest[start+len(openDelim)+end+len(closeDelim):]
	}

	return b.String(), errs
}

func (r *Resolver) reference(inner, nodeID, field string) (string, error) {
	if inner == "" {
		return "", models.NewTemplateError(nodeID, field, "empty placeholder")
	}

	if strings.HasPrefix(inner, StateMarker) {
		segments, err := splitPath(strings.TrimPrefix(inner, StateMarker))
		if err != nil {
			return "", models.NewTemplateError(nodeID, field, fmt.Sprintf("placeholder {{%s}}: %v", inner, err))
		}

		if err := r.checkTarget(segments[0], nodeID, field, inner); err != nil {
			return "", err
		}

		return stateAccess(segments[0], segments[1:]), nil
	}

	segments, err := splitPath(inner)
	if err != nil {
		return "", models.NewTemplateError(nodeID, field, fmt.Sprintf("placeholder {{%s}}: %v", inner, err))
	}

	if target, step, ok := r.lookupStep(segments[0]); ok {
		if err := r.checkTarget(target, nodeID, field, inner); err != nil {
			return "", err
		}

		return step + fieldAccess(segments[1:]), nil
	}

	if err := r.checkTarget(segments[0], nodeID, field, inner); err != nil {
		return "", err
	}

	return stateAccess(segments[0], segments[1:]), nil
}

// lookupStep resolves a segment that is either a node id or a step name.
func (r *Resolver) lookupStep(segment string) (nodeID, step string, ok bool) {
	if r.graph == nil {
		return "", "", false
	}

	if step, ok := r.graph.StepName(segment); ok {
		return segment, step, true
	}

	if id, ok := r.graph.NodeForStep(segment); ok {
		return id, segment, true
	}

	return "", "", false
}

// checkTarget enforces, in strict mode, that the referenced node exists and
// runs before the referencing node.
func (r *Resolver) checkTarget(target, nodeID, field, inner string) error {
	if !r.strict {
		return nil
	}

	if r.graph == nil {
		return models.NewTemplateError(nodeID, field, fmt.Sprintf("placeholder {{%s}} cannot be resolved without a graph", inner))
	}

	if _, ok := r.graph.Node(target); !ok {
		return models.NewTemplateError(nodeID, field, fmt.Sprintf("placeholder {{%s}} references unknown node '%s'", inner, target))
	}

	if nodeID == "" {
		return nil
	}

	if self := r.graph.Position(nodeID); self >= 0 && r.graph.Position(target) >= self {
		return models.NewTemplateError(nodeID, field, fmt.Sprintf("placeholder {{%s}} references node '%s' which does not run before this node", inner, target))
	}

	return nil
}

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, errors.New("missing node reference")
	}

	segments := strings.Split(path, ".")
	for _, segment := range segments {
		if !pathSegment.MatchString(segment) {
			return nil, fmt.Errorf("invalid path segment %q", segment)
		}
	}

	return segments, nil
}

func stateAccess(nodeID string, path []string) string {
	if len(path) == 0 {
		path = []string{DefaultField}
	}

	return "state[" + quote(nodeID) + "]" + fieldAccess(path)
}

func fieldAccess(path []string) string {
	var b strings.Builder

	for _, segment := range path {
		switch {
		case indexSegment.MatchString(segment):
			b.WriteString("?.[" + segment + "]")
		case identifierSegment.MatchString(segment):
			b.WriteString("?." + segment)
		default:
			b.WriteString("?.[" + quote(segment) + "]")
		}
	}

	return b.String()
}

func escapeLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "`", "\\`")

	return strings.ReplaceAll(s, "${", "\\${")
}

// quote renders s as a double-quoted string literal valid in the generated module.
func quote(s string) string {
	encoded, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}

	return string(encoded)
}
