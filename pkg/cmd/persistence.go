package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/flowforge/pkg/persistence"
	"github.com/dukex/flowforge/pkg/persistence/file"
	"github.com/dukex/flowforge/pkg/persistence/postgresql"
	"github.com/dukex/flowforge/pkg/persistence/redis"
	"github.com/dukex/flowforge/pkg/persistence/sqlite"
)

var supportedPersistenceProviders = []string{"file", "postgres", "postgresql", "sqlite", "redis", "rediss"}

// NewPersistence opens the store named by the URL scheme. A URL without a
// known scheme is treated as a directory for the file store.
//
//nolint:ireturn
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	provider := parsePersistenceProvider(databaseURL)

	var (
		store persistence.Persistence
		err   error
	)

	switch provider {
	case "postgres", "postgresql":
		store, err = postgresql.NewPersistence(ctx, logger, databaseURL)
	case "sqlite":
		store, err = sqlite.NewPersistence(ctx, logger, databaseURL)
	case "redis", "rediss":
		store, err = redis.NewPersistence(ctx, logger, databaseURL, redis.DefaultPrefix)
	default:
		store, err = file.NewPersistence(databaseURL)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open %s persistence: %w", provider, err)
	}

	logger.InfoContext(ctx, "Persistence ready", "provider", provider)

	return store, nil
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	for _, supported := range supportedPersistenceProviders {
		if provider == supported {
			return provider
		}
	}

	return "file"
}
