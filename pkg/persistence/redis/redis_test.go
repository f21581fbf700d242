package redis_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dukex/flowforge/pkg/models"
	"github.com/dukex/flowforge/pkg/persistence/persistencetest"
	"github.com/dukex/flowforge/pkg/persistence/redis"
)

func startRedis(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.Run(
		ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err)

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	return "redis://" + endpoint + "/0"
}

func TestPersistenceContract(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()

	store, err := redis.NewPersistence(ctx, slog.Default(), url, "flowforge:test:contract:")
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close(ctx) })

	persistencetest.Run(t, store)
}

func TestPersistence_StatusIndexFollowsSaves(t *testing.T) {
	url := startRedis(t)
	ctx := context.Background()

	opts, err := goredis.ParseURL(url)
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	store := redis.NewWithClient(client, "flowforge:test:index:", slog.Default())

	t.Cleanup(func() { _ = store.Close(ctx) })

	state := persistencetest.NewState("dep-1", models.DeploymentStatusInProgress)
	require.NoError(t, store.SaveDeploymentState(ctx, state))

	state.Status = models.DeploymentStatusSuccess
	require.NoError(t, store.SaveDeploymentState(ctx, state))

	active, err := store.DeploymentStates(ctx, models.DeploymentStatusInProgress)
	require.NoError(t, err)
	assert.Empty(t, active)

	members, err := client.SMembers(ctx, "flowforge:test:index:idx:status:success").Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"dep-1"}, members)
}

func TestNewPersistence_InvalidURL(t *testing.T) {
	_, err := redis.NewPersistence(context.Background(), slog.Default(), "not-a-url", "")
	assert.Error(t, err)
}
