package main

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowforge/pkg/channels/gochannel"
	"github.com/dukex/flowforge/pkg/eventbus"
	"github.com/dukex/flowforge/pkg/events"
	"github.com/dukex/flowforge/pkg/log"
	"github.com/dukex/flowforge/pkg/models"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestRegisterEventLoggers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	logger := log.New(out, "info", "json")

	pub, sub := gochannel.CreateChannel(watermill.NewSlogLogger(slog.Default()))
	bus := eventbus.NewWatermillEventBus(pub, sub, logger)

	defer func() {
		require.NoError(t, bus.Close())
	}()

	require.NoError(t, registerEventLoggers(bus, logger))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "dep-1", events.DeploymentFailed{
		BaseEvent: events.NewBaseEvent(events.DeploymentFailedEvent, "dep-1", "wf-1"),
		Step:      models.StepCreatingVersion,
		Error:     "upload rejected",
	}))

	require.NoError(t, bus.Publish(ctx, "dep-2", events.DeploymentCompleted{
		BaseEvent: events.NewBaseEvent(events.DeploymentCompletedEvent, "dep-2", "wf-2"),
		Result:    models.DeploymentResult{WorkflowName: "echo", VersionID: "ver-9"},
	}))

	require.Eventually(t, func() bool {
		logs := out.String()

		return strings.Contains(logs, "Deployment failed") && strings.Contains(logs, "Deployment completed")
	}, 2*time.Second, 10*time.Millisecond)

	logs := out.String()
	assert.Contains(t, logs, `"error":"upload rejected"`)
	assert.Contains(t, logs, `"version_id":"ver-9"`)
}
