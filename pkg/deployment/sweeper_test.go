package deployment_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowforge/pkg/deployment"
	"github.com/dukex/flowforge/pkg/mocks"
	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/persistence/file"
	"github.com/dukex/flowforge/pkg/stream"
)

func TestSweeper_FailsStaleDeployments(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	save := func(id string, status models.DeploymentStatus, updated time.Time) {
		require.NoError(t, store.SaveDeploymentState(ctx, &models.DeploymentState{
			DeploymentID: id,
			WorkflowID:   "wf-" + id,
			Status:       status,
			Progress: []models.ProgressEntry{
				{Step: models.StepCreatingVersion, Message: "uploading version", Percent: 41, Timestamp: updated},
			},
			StartedAt: updated,
			UpdatedAt: updated,
		}))
	}

	save("stale", models.DeploymentStatusInProgress, now.Add(-time.Hour))
	save("fresh", models.DeploymentStatusInProgress, now.Add(-time.Minute))
	save("done", models.DeploymentStatusSuccess, now.Add(-time.Hour))

	orch := deployment.New(store, &mocks.MockPlatformAPI{}, stream.NewHub(slog.Default()), slog.Default(),
		deployment.WithClock(func() time.Time { return now }))
	sweeper := deployment.NewSweeper(orch, 10*time.Minute, slog.Default())

	swept, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	state, err := orch.Status(ctx, "stale")
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusFailed, state.Status)
	assert.Equal(t, deployment.InterruptedMessage, state.Error)
	assert.Equal(t, models.StepFailed, state.LastStep())
	assert.Equal(t, 41, state.Progress[len(state.Progress)-1].Percent)

	fresh, err := store.DeploymentState(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusInProgress, fresh.Status)

	swept, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestSweeper_StartRejectsBadSchedule(t *testing.T) {
	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	orch := deployment.New(store, &mocks.MockPlatformAPI{}, stream.NewHub(slog.Default()), slog.Default())
	sweeper := deployment.NewSweeper(orch, 0, slog.Default())

	require.Error(t, sweeper.Start("every now and then"))
	require.NoError(t, sweeper.Start(deployment.DefaultSweepSchedule))

	sweeper.Stop()
}
