// Package main provides the flowforge command line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"

	"github.com/dukex/flowforge/pkg/log"
)

var errMissingFile = errors.New("a workflow file is required")

func main() {
	command := &cli.Command{
		Name:                  "flowforge",
		Usage:                 "Compile and check workflow definitions",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "warn",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, command *cli.Command) (context.Context, error) {
			log.Setup(command.String("log-level"), "text")

			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:      "compile",
				Aliases:   []string{"c"},
				Usage:     "Compile a workflow into a deployable module",
				ArgsUsage: "<workflow file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output directory for index.js and wrangler.json",
						Value:   "dist",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Workflow name override",
					},
					&cli.StringFlag{
						Name:  "class-name",
						Usage: "Workflow class name override",
					},
					&cli.StringFlag{
						Name:  "compatibility-date",
						Usage: "Platform compatibility date",
					},
					&cli.BoolFlag{
						Name:  "lenient",
						Usage: "Leave unresolved template references in place instead of failing",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					path := command.Args().First()
					if path == "" {
						return errMissingFile
					}

					strict := !command.Bool("lenient")

					return compileFile(os.Stdout, path, command.String("out"), compileOptions{
						name:              command.String("name"),
						className:         command.String("class-name"),
						compatibilityDate: command.String("compatibility-date"),
						strict:            strict,
					})
				},
			},
			{
				Name:      "check",
				Usage:     "Report graph, node configuration and template problems",
				ArgsUsage: "<workflow file>",
				Action: func(ctx context.Context, command *cli.Command) error {
					path := command.Args().First()
					if path == "" {
						return errMissingFile
					}

					return checkFile(os.Stdout, path)
				},
			},
			{
				Name:  "nodes",
				Usage: "List the available node types",
				Action: func(ctx context.Context, command *cli.Command) error {
					return listNodes(os.Stdout)
				},
			},
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
