package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/socialflow/pkg/persistence"
	"github.com/dukex/socialflow/pkg/persistence/file"
	"github.com/dukex/socialflow/pkg/persistence/postgresql"
	"github.com/dukex/socialflow/pkg/persistence/redis"
)

// ErrUnsupportedProvider indicates a backend name or URL scheme this binary cannot build.
var ErrUnsupportedProvider = errors.New("unsupported provider")

// NewPersistence picks the store from the URL scheme: postgres://, redis://, or file:// (the default).
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch parsePersistenceProvider(databaseURL) {
	case "postgres", "postgresql":
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		return redis.NewPersistence(ctx, logger, databaseURL)
	case "file":
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://")), nil
	default:
		return nil, fmt.Errorf("%w: database url %q", ErrUnsupportedProvider, databaseURL)
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
