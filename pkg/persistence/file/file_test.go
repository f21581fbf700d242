package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/persistence"
	"github.com/dukex/flowforge/pkg/persistence/file"
	"github.com/dukex/flowforge/pkg/persistence/persistencetest"
)

func TestPersistenceContract(t *testing.T) {
	store, err := file.NewPersistence("file://" + t.TempDir())
	require.NoError(t, err)

	persistencetest.Run(t, store)
}

func TestPersistence_Layout(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	store, err := file.NewPersistence(root)
	require.NoError(t, err)

	require.NoError(t, store.SaveDeploymentState(ctx, persistencetest.NewState("dep-1", models.DeploymentStatusPending)))
	require.NoError(t, store.RegisterDeployment(ctx, "dep-1"))

	assert.FileExists(t, filepath.Join(root, "deployments", "dep-1.json"))
	assert.FileExists(t, filepath.Join(root, "registry.json"))

	reopened, err := file.NewPersistence(root)
	require.NoError(t, err)

	state, err := reopened.DeploymentState(ctx, "dep-1")
	require.NoError(t, err)
	assert.Equal(t, models.DeploymentStatusPending, state.Status)
}

func TestPersistence_RejectsPathIDs(t *testing.T) {
	store, err := file.NewPersistence(t.TempDir())
	require.NoError(t, err)

	err = store.SaveDeploymentState(context.Background(), persistencetest.NewState("../escape", models.DeploymentStatusPending))
	require.ErrorIs(t, err, persistence.ErrInvalidDeploymentState)

	_, err = store.DeploymentState(context.Background(), "../escape")
	assert.True(t, persistence.IsDeploymentNotFound(err))
}

func TestPersistence_CorruptDocument(t *testing.T) {
	root := t.TempDir()

	store, err := file.NewPersistence(root)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "deployments", "bad.json"), []byte("{"), 0o600))

	_, err = store.DeploymentState(context.Background(), "bad")
	require.Error(t, err)
	assert.False(t, persistence.IsDeploymentNotFound(err))
}

func TestPersistence_HealthCheck(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")

	store, err := file.NewPersistence(root)
	require.NoError(t, err)
	require.NoError(t, store.HealthCheck(context.Background()))

	require.NoError(t, os.RemoveAll(root))
	assert.Error(t, store.HealthCheck(context.Background()))
}
