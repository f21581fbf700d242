package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dukex/flowforge/pkg/compiler"
	"github.com/dukex/flowforge/pkg/loader"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/registry"
)

// PlatformConfigFile is the descriptor written next to the module.
const PlatformConfigFile = "wrangler.json"

type compileOptions struct {
	name              string
	className         string
	compatibilityDate string
	strict            bool
}

func newCompiler() (*compiler.Compiler, *registry.Registry, error) {
	logger := slog.Default()

	nodes := registry.NewRegistry(logger)
	if err := nodes.RegisterDefaultNodes(); err != nil {
		return nil, nil, err
	}

	return compiler.New(nodes, logger), nodes, nil
}

func compileFile(out io.Writer, path, outDir string, opts compileOptions) error {
	def, err := loader.Load(path)
	if err != nil {
		return err
	}

	c, _, err := newCompiler()
	if err != nil {
		return err
	}

	result, err := c.Compile(def, compiler.Options{
		WorkflowName:      opts.name,
		ClassName:         opts.className,
		CompatibilityDate: opts.compatibilityDate,
		StrictTemplates:   &opts.strict,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", models.ErrorKind(err), err)
	}

	descriptor, err := json.MarshalIndent(result.PlatformConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode platform config: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	modulePath := filepath.Join(outDir, compiler.MainModule)
	if err := os.WriteFile(modulePath, []byte(result.SourceCode), 0o644); err != nil {
		return fmt.Errorf("failed to write module: %w", err)
	}

	configPath := filepath.Join(outDir, PlatformConfigFile)
	if err := os.WriteFile(configPath, append(descriptor, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write platform config: %w", err)
	}

	fmt.Fprintf(out, "compiled %s (%s) with %d binding(s)\n", result.WorkflowName, result.ClassName, len(result.Bindings))
	fmt.Fprintf(out, "  %s\n  %s\n", modulePath, configPath)

	return nil
}

func checkFile(out io.Writer, path string) error {
	def, err := loader.Load(path)
	if err != nil {
		return err
	}

	c, _, err := newCompiler()
	if err != nil {
		return err
	}

	problems := c.Validate(def)
	if len(problems) == 0 {
		problems = c.CheckTemplates(def, compiler.Options{})
	}

	if len(problems) == 0 {
		fmt.Fprintf(out, "%s: ok\n", path)

		return nil
	}

	for _, problem := range problems {
		fmt.Fprintf(out, "%s: %s: %v\n", path, models.ErrorKind(problem), problem)
	}

	return fmt.Errorf("%d problem(s) found", len(problems))
}

func listNodes(out io.Writer) error {
	_, nodes, err := newCompiler()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tNAME\tDESCRIPTION")

	for _, node := range nodes.AvailableNodes() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", node.Type, node.Name, node.Description)
	}

	return w.Flush()
}
