package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/dukex/socialflow/pkg/catalog"
	"github.com/dukex/socialflow/pkg/executor"
	"github.com/dukex/socialflow/pkg/models"
	"github.com/dukex/socialflow/pkg/variables"
	"github.com/dukex/socialflow/pkg/workflow"
	cli "github.com/urfave/cli/v3"
)

var (
	ErrMissingFile   = errors.New("workflow file argument is required")
	ErrInvalidGraph  = errors.New("workflow has validation errors")
	ErrMissingUpTo   = errors.New("--upto step id is required")
	ErrRunNotSucceed = errors.New("workflow run did not succeed")
)

func loadWorkflow(command *cli.Command) (*models.Workflow, error) {
	path := command.Args().First()
	if path == "" {
		return nil, ErrMissingFile
	}

	var reader io.Reader = os.Stdin

	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = file.Close() }()

		reader = file
	}

	var wf models.Workflow
	if err := json.NewDecoder(reader).Decode(&wf); err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", path, err)
	}

	defaults := models.DefaultConfig()

	if wf.Config.TimeoutMs <= 0 {
		wf.Config.TimeoutMs = defaults.TimeoutMs
	}

	if wf.Config.OnError == "" {
		wf.Config.OnError = defaults.OnError
	}

	return &wf, nil
}

func printJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Report structural problems of a workflow",
		ArgsUsage: "<workflow.json>",
		Action: func(ctx context.Context, command *cli.Command) error {
			wf, err := loadWorkflow(command)
			if err != nil {
				return err
			}

			problems := workflow.New(wf, catalog.Default).Validate()
			if err := printJSON(command.Root().Writer, problems); err != nil {
				return err
			}

			if len(problems) > 0 {
				return fmt.Errorf("%w: %d found", ErrInvalidGraph, len(problems))
			}

			return nil
		},
	}
}

func orderCommand() *cli.Command {
	return &cli.Command{
		Name:      "order",
		Usage:     "Print the step ids in execution order",
		ArgsUsage: "<workflow.json>",
		Action: func(ctx context.Context, command *cli.Command) error {
			wf, err := loadWorkflow(command)
			if err != nil {
				return err
			}

			order, err := workflow.Linearize(wf)
			if err != nil {
				return err
			}

			return printJSON(command.Root().Writer, order)
		},
	}
}

func variablesCommand() *cli.Command {
	return &cli.Command{
		Name:      "variables",
		Usage:     "List the references available to a step",
		ArgsUsage: "<workflow.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "upto", Usage: "Step id whose inputs are listed"},
			&cli.BoolFlag{Name: "bindings", Usage: "Also report shape mismatches of existing references"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			wf, err := loadWorkflow(command)
			if err != nil {
				return err
			}

			upto := command.String("upto")
			if upto == "" {
				return ErrMissingUpTo
			}

			checker := variables.NewChecker(wf, catalog.Default)

			available, err := checker.ListAvailableVariables(upto)
			if err != nil {
				return err
			}

			if !command.Bool("bindings") {
				return printJSON(command.Root().Writer, available)
			}

			return printJSON(command.Root().Writer, map[string]any{
				"variables": available,
				"warnings":  checker.CheckBindings(),
			})
		},
	}
}

func catalogCommand() *cli.Command {
	return &cli.Command{
		Name:  "catalog",
		Usage: "List the action types and their parameters",
		Action: func(ctx context.Context, command *cli.Command) error {
			descriptors := make([]catalog.Descriptor, 0)

			for _, actionType := range catalog.Default.Types() {
				descriptor, err := catalog.Default.Describe(actionType)
				if err != nil {
					return err
				}

				descriptors = append(descriptors, descriptor)
			}

			return printJSON(command.Root().Writer, descriptors)
		},
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Dry-run a workflow in-process, logging every action instead of performing it",
		ArgsUsage: "<workflow.json>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "account", Usage: "Account reference passed to actions", Value: "dry-run"},
			&cli.BoolFlag{Name: "instant", Usage: "Skip delays and retry waits"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			wf, err := loadWorkflow(command)
			if err != nil {
				return err
			}

			if _, err := workflow.Linearize(wf); err != nil {
				return err
			}

			logger := slog.Default()

			var opts []executor.Option
			if command.Bool("instant") {
				opts = append(opts, executor.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
			}

			exec := executor.New(executor.NewDryRun(logger), logger, opts...)
			result := exec.Run(ctx, "dry-run", wf, command.String("account"), &executor.Control{}, nil)

			if err := printJSON(command.Root().Writer, result); err != nil {
				return err
			}

			if result.State != models.ExecutionSucceeded {
				return fmt.Errorf("%w: %s", ErrRunNotSucceed, result.State)
			}

			return nil
		},
	}
}
