package sqlbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/persistence"
)

// Migrations is the schema shared by every SQL backend. Timestamps are stored
// as RFC 3339 text so that both engines order and compare them the same way.
func Migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE deployment_states (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL,
				state TEXT NOT NULL,
				updated_at VARCHAR(64) NOT NULL
			);

			CREATE INDEX idx_deployment_states_status ON deployment_states(status);
			CREATE INDEX idx_deployment_states_workflow_id ON deployment_states(workflow_id);
		`,
		2: `
			CREATE TABLE deployment_registry (
				id VARCHAR(255) PRIMARY KEY,
				seq BIGINT NOT NULL,
				registered_at VARCHAR(64) NOT NULL
			);

			CREATE INDEX idx_deployment_registry_seq ON deployment_registry(seq);
		`,
	}
}

// Store implements persistence.Persistence over database/sql for any dialect.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

var _ persistence.Persistence = (*Store)(nil)

// Open runs the migrations on db and returns a store over it.
func Open(ctx context.Context, logger *slog.Logger, db *sql.DB, dialect Dialect) (*Store, error) {
	err := NewMigrationManager(logger, db, dialect, Migrations()).RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db, dialect: dialect, logger: logger}, nil
}

func (s *Store) ph(n int) string {
	return s.dialect.Placeholder(n)
}

func (s *Store) DeploymentState(ctx context.Context, id string) (*models.DeploymentState, error) {
	var raw string

	err := s.db.QueryRowContext(ctx, "SELECT state FROM deployment_states WHERE id = "+s.ph(1), id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, persistence.NewDeploymentError("Get", id, persistence.ErrDeploymentNotFound)
	}

	if err != nil {
		return nil, persistence.NewDeploymentError("Get", id, err)
	}

	var state models.DeploymentState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, persistence.NewDeploymentError("Get", id, fmt.Errorf("failed to decode state: %w", err))
	}

	return &state, nil
}

func (s *Store) SaveDeploymentState(ctx context.Context, state *models.DeploymentState) error {
	if err := persistence.ValidateState(state); err != nil {
		return err
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return persistence.NewDeploymentError("Save", state.DeploymentID, fmt.Errorf("failed to encode state: %w", err))
	}

	query := fmt.Sprintf(`
		INSERT INTO deployment_states (id, workflow_id, status, state, updated_at)
		VALUES (%s, %s, %s, %s, %s)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = excluded.workflow_id
		  , status = excluded.status
		  , state = excluded.state
		  , updated_at = excluded.updated_at
	`, s.ph(1), s.ph(2), s.ph(3), s.ph(4), s.ph(5))

	_, err = s.db.ExecContext(ctx, query,
		state.DeploymentID,
		state.WorkflowID,
		string(state.Status),
		string(raw),
		state.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return persistence.NewDeploymentError("Save", state.DeploymentID, err)
	}

	return nil
}

func (s *Store) DeploymentStates(ctx context.Context, statuses ...models.DeploymentStatus) ([]*models.DeploymentState, error) {
	query := "SELECT state FROM deployment_states"
	args := make([]any, 0, len(statuses))

	if len(statuses) > 0 {
		marks := make([]string, 0, len(statuses))
		for i, status := range statuses {
			marks = append(marks, s.ph(i+1))
			args = append(args, string(status))
		}

		query += " WHERE status IN (" + strings.Join(marks, ", ") + ")"
	}

	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewDeploymentError("List", "", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	states := make([]*models.DeploymentState, 0)

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, persistence.NewDeploymentError("List", "", err)
		}

		var state models.DeploymentState
		if err := json.Unmarshal([]byte(raw), &state); err != nil {
			return nil, persistence.NewDeploymentError("List", "", fmt.Errorf("failed to decode state: %w", err))
		}

		states = append(states, &state)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewDeploymentError("List", "", err)
	}

	return states, nil
}

func (s *Store) RegisterDeployment(ctx context.Context, id string) error {
	if id == "" {
		return persistence.NewDeploymentError("Register", "", persistence.ErrInvalidDeploymentState)
	}

	query := fmt.Sprintf(`
		INSERT INTO deployment_registry (id, seq, registered_at)
		SELECT CAST(%s AS VARCHAR(255)), COALESCE(MAX(seq), 0) + 1, CAST(%s AS VARCHAR(64))
		FROM deployment_registry
		WHERE 1 = 1
		ON CONFLICT (id) DO NOTHING
	`, s.ph(1), s.ph(2))

	_, err := s.db.ExecContext(ctx, query, id, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return persistence.NewDeploymentError("Register", id, err)
	}

	return nil
}

func (s *Store) RegisteredDeployments(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM deployment_registry ORDER BY seq")
	if err != nil {
		return nil, persistence.NewDeploymentError("ListRegistered", "", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	ids := make([]string, 0)

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, persistence.NewDeploymentError("ListRegistered", "", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewDeploymentError("ListRegistered", "", err)
	}

	return ids, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *Store) Close(_ context.Context) error {
	if s.db == nil {
		return nil
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}
