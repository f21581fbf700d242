package template

import (
	"errors"
	"testing"

	"github.com/dukex/flowforge/pkg/graph"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, strict bool) *Resolver {
	t.Helper()

	wf := testutil.CreateHTTPWorkflow("wf")

	ctx, err := graph.BuildContext(wf.Nodes, wf.Edges)
	require.NoError(t, err)

	return NewResolver(ctx, strict)
}

func TestResolve(t *testing.T) {
	r := newTestResolver(t, true)

	tests := []struct {
		name     string
		input    string
		nodeID   string
		expected string
	}{
		{"no placeholder", "plain text", "fetch", "plain text"},
		{"braces without placeholder", "{ not a template }", "fetch", "{ not a template }"},
		{"node id reference", "id: {{start.body.id}}", "fetch", "id: ${entry?.body?.id}"},
		{"step name reference", "{{entry.body}}", "fetch", "${entry?.body}"},
		{"whitespace inside", "{{  start.body  }}", "fetch", "${entry?.body}"},
		{"state marker default field", "{{state.start}}", "fetch", `${state["start"]?.output}`},
		{"state marker with path", "{{state.start.body}}", "fetch", `${state["start"]?.body}`},
		{"array index", "{{start.items.0.name}}", "fetch", "${entry?.items?.[0]?.name}"},
		{"non identifier segment", "{{start.headers.content-type}}", "fetch", `${entry?.headers?.["content-type"]}`},
		{"multiple placeholders", "{{start.a}}-{{fetch.b}}", "finish", "${entry?.a}-${http_request_2?.b}"},
		{"literal escaping", "cost `x` ${y} {{start.total}}", "fetch", "cost \\`x\\` \\${y} ${entry?.total}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.input, tt.nodeID)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolve_Errors(t *testing.T) {
	r := newTestResolver(t, true)

	tests := []struct {
		name     string
		input    string
		contains string
	}{
		{"unknown node", "{{ghost.value}}", "unknown node 'ghost'"},
		{"unknown node with state marker", "{{state.ghost}}", "unknown node 'ghost'"},
		{"forward reference", "{{finish.value}}", "does not run before"},
		{"self reference", "{{fetch.status}}", "does not run before"},
		{"unterminated", "{{start.body", "unterminated placeholder"},
		{"empty", "{{ }}", "empty placeholder"},
		{"bad segment", "{{start..body}}", "invalid path segment"},
		{"state marker without node", "{{state.}}", "missing node reference"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(tt.input, "fetch")
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrTemplate))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestResolve_NonStrictFallsBackToState(t *testing.T) {
	r := newTestResolver(t, false)

	got, err := r.Resolve("{{ghost.value}}", "fetch")
	require.NoError(t, err)
	assert.Equal(t, `${state["ghost"]?.value}`, got)

	got, err = r.Resolve("{{ghost}}", "fetch")
	require.NoError(t, err)
	assert.Equal(t, `${state["ghost"]?.output}`, got)
}

func TestResolve_WithoutGraph(t *testing.T) {
	r := NewResolver(nil, false)

	got, err := r.Resolve("{{anything.x}}", "")
	require.NoError(t, err)
	assert.Equal(t, `${state["anything"]?.x}`, got)

	_, err = NewResolver(nil, true).Resolve("{{anything.x}}", "")
	assert.True(t, errors.Is(err, models.ErrTemplate))
}

func TestExpression(t *testing.T) {
	r := newTestResolver(t, true)

	got, err := r.Expression("hello \"world\"", "fetch", "msg")
	require.NoError(t, err)
	assert.Equal(t, `"hello \"world\""`, got)

	got, err = r.Expression("{{start.body}}", "fetch", "body")
	require.NoError(t, err)
	assert.Equal(t, "entry?.body", got)

	got, err = r.Expression("id={{start.id}}", "fetch", "url")
	require.NoError(t, err)
	assert.Equal(t, "`id=${entry?.id}`", got)

	got, err = r.Expression("{{start.a}}{{start.b}}", "fetch", "url")
	require.NoError(t, err)
	assert.Equal(t, "`${entry?.a}${entry?.b}`", got)

	_, err = r.Expression("{{ghost}}", "fetch", "url")
	assert.True(t, errors.Is(err, models.ErrTemplate))
}

func TestValue(t *testing.T) {
	r := newTestResolver(t, true)

	got, err := r.Value(map[string]any{
		"b":     1,
		"a":     "{{start.x}}",
		"list":  []any{"x", true, nil},
		"inner": map[string]any{"z": 2.5},
	}, "fetch", "body")
	require.NoError(t, err)
	assert.Equal(t, `{"a": entry?.x, "b": 1, "inner": {"z": 2.5}, "list": ["x", true, null]}`, got)

	_, err = r.Value(map[string]any{"a": "{{ghost}}"}, "fetch", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'body.a'")
}

func TestCheck_CollectsAllErrors(t *testing.T) {
	r := newTestResolver(t, true)

	errs := r.Check(map[string]any{
		"url": "{{ghost.a}}/{{phantom.b}}",
		"headers": map[string]any{
			"x-ok":  "{{start.token}}",
			"x-bad": "{{nope}}",
		},
		"retries": 3,
	}, "fetch")

	require.Len(t, errs, 3)

	for _, err := range errs {
		assert.True(t, errors.Is(err, models.ErrTemplate))
	}

	assert.Contains(t, errs[0].Error(), "headers.x-bad")
	assert.Contains(t, errs[1].Error(), "ghost")
	assert.Contains(t, errs[2].Error(), "phantom")
}

func TestNeedsTemplating(t *testing.T) {
	assert.True(t, NeedsTemplating("a {{b}}"))
	assert.False(t, NeedsTemplating("a {b}"))
}
