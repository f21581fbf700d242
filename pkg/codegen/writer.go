// Package codegen provides the text builder used to emit the generated module.
package codegen

import (
	"encoding/json"
	"fmt"
	"strings"
)

const indentUnit = "  "

// Writer accumulates indented lines of generated source.
type Writer struct {
	b      strings.Builder
	indent int
}

func NewWriter() *Writer {
	return &Writer{}
}

// Line writes one line at the current indentation. Arguments are applied with
// fmt.Sprintf when present.
func (w *Writer) Line(format string, args ...any) *Writer {
	line := format
	if len(args) > 0 {
		line = fmt.Sprintf(format, args...)
	}

	if line == "" {
		w.b.WriteByte('\n')

		return w
	}

	w.b.WriteString(strings.Repeat(indentUnit, w.indent))
	w.b.WriteString(line)
	w.b.WriteByte('\n')

	return w
}

// Blank writes an empty line.
func (w *Writer) Blank() *Writer {
	w.b.WriteByte('\n')

	return w
}

// Open writes a line and indents what follows.
func (w *Writer) Open(format string, args ...any) *Writer {
	w.Line(format, args...)
	w.indent++

	return w
}

// Close dedents and writes a line.
func (w *Writer) Close(format string, args ...any) *Writer {
	if w.indent > 0 {
		w.indent--
	}

	return w.Line(format, args...)
}

// Reopen closes the current block and opens the next one on the same line,
// as in "} else {".
func (w *Writer) Reopen(format string, args ...any) *Writer {
	w.Close(format, args...)
	w.indent++

	return w
}

// Block writes a multi-line fragment, re-indenting each of its lines.
func (w *Writer) Block(fragment string) *Writer {
	for _, line := range strings.Split(strings.TrimRight(fragment, "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			w.b.WriteByte('\n')

			continue
		}

		w.b.WriteString(strings.Repeat(indentUnit, w.indent))
		w.b.WriteString(line)
		w.b.WriteByte('\n')
	}

	return w
}

func (w *Writer) String() string {
	return w.b.String()
}

// Quote renders s as a string literal of the generated module.
func Quote(s string) string {
	encoded, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%q", s)
	}

	return string(encoded)
}

// Int reads an integer config value as decoded from JSON, YAML or HCL.
func Int(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}

		return int(n), true
	default:
		return 0, false
	}
}

// StepOptions is the retry policy passed to step.do.
type StepOptions struct {
	Retries int
	DelayMS int
	Backoff string
	Timeout string
}

// StepDo emits `<target> = await step.do("<name>", [options,] async () => { body });`.
func StepDo(w *Writer, target, name string, opts *StepOptions, body func(*Writer)) {
	if opts == nil {
		w.Open("%s = await step.do(%s, async () => {", target, Quote(name))
	} else {
		w.Open("%s = await step.do(%s, %s, async () => {", target, Quote(name), opts.literal())
	}

	body(w)
	w.Close("});")
}

func (o *StepOptions) literal() string {
	backoff := o.Backoff
	if backoff == "" {
		backoff = "exponential"
	}

	parts := []string{
		fmt.Sprintf("retries: { limit: %d, delay: %d, backoff: %s }", o.Retries, o.DelayMS, Quote(backoff)),
	}

	if o.Timeout != "" {
		parts = append(parts, "timeout: "+Quote(o.Timeout))
	}

	return "{ " + strings.Join(parts, ", ") + " }"
}

// ParseStepOptions reads the optional `retries` object shared by effectful nodes.
func ParseStepOptions(config map[string]any) (*StepOptions, error) {
	raw, ok := config["retries"]
	if !ok || raw == nil {
		return nil, nil
	}

	retries, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("field 'retries' must be an object")
	}

	opts := &StepOptions{DelayMS: 1000}

	if v, ok := retries["attempts"]; ok {
		attempts, ok := Int(v)
		if !ok || attempts < 0 {
			return nil, fmt.Errorf("field 'retries.attempts' must be a non-negative integer")
		}

		opts.Retries = attempts
	}

	if v, ok := retries["delay"]; ok {
		delay, ok := Int(v)
		if !ok || delay < 0 {
			return nil, fmt.Errorf("field 'retries.delay' must be a non-negative integer")
		}

		opts.DelayMS = delay
	}

	if v, ok := retries["backoff"].(string); ok {
		switch v {
		case "constant", "linear", "exponential":
			opts.Backoff = v
		default:
			return nil, fmt.Errorf("field 'retries.backoff' must be constant, linear or exponential")
		}
	}

	if v, ok := config["timeout"].(string); ok {
		opts.Timeout = v
	}

	return opts, nil
}
