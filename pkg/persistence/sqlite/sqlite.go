// Package sqlite provides an embedded SQLite persistence for deployment state,
// for single-node installs without an external database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/dukex/flowforge/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for SQLite.
type Persistence struct {
	*sqlbase.Store
}

// NewPersistence opens the database file named by dsn (a path, optionally
// prefixed with sqlite://) and migrates it.
func NewPersistence(ctx context.Context, logger *slog.Logger, dsn string) (*Persistence, error) {
	path := strings.TrimPrefix(dsn, "sqlite://")

	database, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// SQLite allows a single writer.
	database.SetMaxOpenConns(1)

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store, err := sqlbase.Open(ctx, logger, database, sqlbase.SQLite)
	if err != nil {
		_ = database.Close()

		return nil, err
	}

	return &Persistence{Store: store}, nil
}
