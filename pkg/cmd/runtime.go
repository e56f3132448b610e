// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/socialflow/pkg/accounts"
	"github.com/dukex/socialflow/pkg/executions"
	"github.com/dukex/socialflow/pkg/executions/remote"
	"github.com/dukex/socialflow/pkg/executor"
)

// Runtime is a runner together with the resources the binary must release on exit.
type Runtime struct {
	Runner    executions.Runner
	Directory accounts.Directory

	closers []func() error
}

// Close releases every resource the runtime opened.
func (r *Runtime) Close() error {
	var firstErr error

	for _, closer := range r.closers {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// NewRuntime builds the execution runner and the account directory.
// An empty runnerURL runs workflows in-process against the dry-run performer.
// accountsURL is either redis:// or a static list (see accounts.ParseStatic).
func NewRuntime(ctx context.Context, logger *slog.Logger, runnerURL, accountsURL string) (*Runtime, error) {
	runtime := &Runtime{}

	if runnerURL == "" {
		local := executions.NewLocalRunner(executor.New(executor.NewDryRun(logger), logger), logger)
		runtime.Runner = local
		runtime.closers = append(runtime.closers, local.Close)

		logger.InfoContext(ctx, "Using in-process runner with dry-run actions")
	} else {
		runtime.Runner = remote.NewRunner(runnerURL, logger)

		logger.InfoContext(ctx, "Using remote runner", "runner_url", runnerURL)
	}

	directory, err := newDirectory(ctx, accountsURL)
	if err != nil {
		_ = runtime.Close()

		return nil, err
	}

	runtime.Directory = directory

	if redisDirectory, ok := directory.(*accounts.Redis); ok {
		runtime.closers = append(runtime.closers, redisDirectory.Close)
	}

	return runtime, nil
}

// nolint:ireturn // the directory backend is chosen at runtime
func newDirectory(ctx context.Context, accountsURL string) (accounts.Directory, error) {
	if strings.HasPrefix(accountsURL, "redis://") || strings.HasPrefix(accountsURL, "rediss://") {
		directory, err := accounts.NewRedis(ctx, accountsURL, "")
		if err != nil {
			return nil, fmt.Errorf("failed to connect account directory: %w", err)
		}

		return directory, nil
	}

	return accounts.ParseStatic(accountsURL), nil
}
