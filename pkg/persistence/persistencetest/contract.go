// Package persistencetest holds the behavior every persistence backend must share.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/persistence"
)

// NewState builds a deployment state with UTC timestamps that survive encoding.
func NewState(id string, status models.DeploymentStatus) *models.DeploymentState {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	return &models.DeploymentState{
		DeploymentID: id,
		WorkflowID:   "wf-" + id,
		Status:       status,
		Progress: []models.ProgressEntry{
			{
				Step:      models.StepInitializing,
				Message:   "deployment initialized",
				Percent:   0,
				Timestamp: started,
			},
		},
		StartedAt: started,
		UpdatedAt: started,
	}
}

// Run exercises a store against the persistence contract. The store must be empty.
func Run(t *testing.T, store persistence.Persistence) {
	t.Helper()

	ctx := context.Background()

	t.Run("missing deployment", func(t *testing.T) {
		state, err := store.DeploymentState(ctx, "ghost")
		assert.Nil(t, state)
		assert.True(t, persistence.IsDeploymentNotFound(err), "got %v", err)
	})

	t.Run("save and reload", func(t *testing.T) {
		state := NewState("dep-1", models.DeploymentStatusInProgress)
		require.NoError(t, store.SaveDeploymentState(ctx, state))

		loaded, err := store.DeploymentState(ctx, "dep-1")
		require.NoError(t, err)
		assert.Equal(t, state, loaded)
	})

	t.Run("save overwrites", func(t *testing.T) {
		state := NewState("dep-1", models.DeploymentStatusFailed)
		completed := state.StartedAt.Add(time.Minute)
		state.CompletedAt = &completed
		state.UpdatedAt = completed
		state.Error = "creating-version: platform error"
		require.NoError(t, store.SaveDeploymentState(ctx, state))

		loaded, err := store.DeploymentState(ctx, "dep-1")
		require.NoError(t, err)
		assert.Equal(t, state, loaded)
	})

	t.Run("list by status", func(t *testing.T) {
		require.NoError(t, store.SaveDeploymentState(ctx, NewState("dep-2", models.DeploymentStatusPending)))
		require.NoError(t, store.SaveDeploymentState(ctx, NewState("dep-3", models.DeploymentStatusSuccess)))

		all, err := store.DeploymentStates(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		active, err := store.DeploymentStates(ctx, models.DeploymentStatusPending, models.DeploymentStatusInProgress)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "dep-2", active[0].DeploymentID)
	})

	t.Run("invalid state", func(t *testing.T) {
		err := store.SaveDeploymentState(ctx, &models.DeploymentState{})
		assert.ErrorIs(t, err, persistence.ErrInvalidDeploymentState)
	})

	t.Run("registry", func(t *testing.T) {
		ids, err := store.RegisteredDeployments(ctx)
		require.NoError(t, err)
		assert.Empty(t, ids)

		require.NoError(t, store.RegisterDeployment(ctx, "dep-b"))
		require.NoError(t, store.RegisterDeployment(ctx, "dep-a"))
		require.NoError(t, store.RegisterDeployment(ctx, "dep-b"))

		ids, err = store.RegisteredDeployments(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"dep-b", "dep-a"}, ids)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, store.HealthCheck(ctx))
	})
}
