package main

import (
	"context"
	"os"

	"github.com/dukex/socialflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:                  "socialflow",
		Usage:                 "Inspect and dry-run workflow documents",
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
			log.Setup(command.String("log-level"))

			return ctx, nil
		},
		Commands: []*cli.Command{
			validateCommand(),
			orderCommand(),
			variablesCommand(),
			catalogCommand(),
			runCommand(),
		},
	}
}

func main() {
	logger := log.WithModule("cli")

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
