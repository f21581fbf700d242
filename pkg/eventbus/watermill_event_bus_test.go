package eventbus_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowforge/pkg/channels/gochannel"
	"github.com/dukex/flowforge/pkg/eventbus"
	"github.com/dukex/flowforge/pkg/events"
)

func newBus(t *testing.T) *eventbus.WatermillEventBus {
	t.Helper()

	pub, sub := gochannel.CreateChannel(watermill.NopLogger{})
	bus := eventbus.NewWatermillEventBus(pub, sub, slog.Default())

	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)
	received := make(chan *events.DeploymentFailed, 1)

	require.NoError(t, bus.Handle(events.DeploymentFailedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.DeploymentFailed)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	err := bus.Publish(ctx, "dep-1", events.DeploymentFailed{
		BaseEvent: events.NewBaseEvent(events.DeploymentFailedEvent, "dep-1", "wf-1"),
		Step:      "creating-version",
		Error:     "platform error",
	})
	require.NoError(t, err)

	select {
	case event := <-received:
		assert.Equal(t, "dep-1", event.DeploymentID)
		assert.Equal(t, "platform error", event.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_UnhandledTypesAreSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := newBus(t)
	received := make(chan events.EventType, 2)

	require.NoError(t, bus.Handle(events.DeploymentCompletedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.DeploymentCompleted).Type

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "dep-1", events.DeploymentStarted{
		BaseEvent: events.NewBaseEvent(events.DeploymentStartedEvent, "dep-1", "wf-1"),
	}))
	require.NoError(t, bus.Publish(ctx, "dep-1", events.DeploymentCompleted{
		BaseEvent: events.NewBaseEvent(events.DeploymentCompletedEvent, "dep-1", "wf-1"),
	}))

	select {
	case eventType := <-received:
		assert.Equal(t, events.DeploymentCompletedEvent, eventType)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := newBus(t)

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
