package stream

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/flowforge/pkg/models"
)

func testState(status models.DeploymentStatus) *models.DeploymentState {
	return &models.DeploymentState{DeploymentID: "dep-1", WorkflowID: "wf-1", Status: status}
}

func drain(sub *Subscriber) []Event {
	var out []Event
	for event := range sub.C() {
		out = append(out, event)
	}

	return out
}

func TestHub_SnapshotThenTail(t *testing.T) {
	hub := NewHub(slog.Default())

	sub := hub.Subscribe("dep-1", StateEvent(testState(models.DeploymentStatusInProgress)))

	assert.Equal(t, 1, hub.Publish("dep-1", ProgressEvent(models.ProgressEntry{Step: models.StepCreatingFunction})))
	hub.Publish("dep-1", StateEvent(testState(models.DeploymentStatusSuccess)))
	hub.CloseTopic("dep-1")

	events := drain(sub)
	require.Len(t, events, 3)
	assert.Equal(t, KindState, events[0].Kind)
	assert.Equal(t, models.DeploymentStatusInProgress, events[0].State.Status)
	assert.Equal(t, models.StepCreatingFunction, events[1].Entry.Step)
	assert.Equal(t, models.DeploymentStatusSuccess, events[2].State.Status)
	assert.Zero(t, hub.Subscribers("dep-1"))
}

func TestHub_SlowSubscriberIsDropped(t *testing.T) {
	hub := NewHub(slog.Default(), WithBufferSize(2))

	slow := hub.Subscribe("dep-1")
	fast := hub.Subscribe("dep-1")

	received := make(chan int)

	go func() {
		n := 0
		for range fast.C() {
			n++
		}
		received <- n
	}()

	for i := 0; i < 2; i++ {
		hub.Publish("dep-1", ProgressEvent(models.ProgressEntry{Message: "tick"}))
	}

	// wait for the fast reader to empty its buffer
	require.Eventually(t, func() bool { return len(fast.ch) == 0 }, time.Second, time.Millisecond)

	hub.Publish("dep-1", ProgressEvent(models.ProgressEntry{Message: "overflow"}))

	assert.Equal(t, int64(1), hub.Dropped())
	assert.Equal(t, 1, hub.Subscribers("dep-1"))
	assert.Len(t, drain(slow), 2)

	hub.CloseTopic("dep-1")
	assert.Equal(t, 3, <-received)
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(slog.Default())

	assert.Zero(t, hub.Publish("nobody", StateEvent(testState(models.DeploymentStatusPending))))
}

func TestSubscriber_CloseIsIdempotent(t *testing.T) {
	hub := NewHub(slog.Default())

	sub := hub.Subscribe("dep-1")
	sub.Close()
	sub.Close()

	_, ok := <-sub.C()
	assert.False(t, ok)
	assert.Zero(t, hub.Subscribers("dep-1"))
}

func TestDetached(t *testing.T) {
	sub := Detached(StateEvent(testState(models.DeploymentStatusFailed)))
	sub.Close()

	events := drain(sub)
	require.Len(t, events, 1)
	assert.Equal(t, models.DeploymentStatusFailed, events[0].State.Status)
}

func TestStateEvent_CopiesState(t *testing.T) {
	state := testState(models.DeploymentStatusPending)
	event := StateEvent(state)

	state.Status = models.DeploymentStatusFailed
	assert.Equal(t, models.DeploymentStatusPending, event.State.Status)
}

func TestWriteSSE(t *testing.T) {
	sub := Detached(
		StateEvent(testState(models.DeploymentStatusInProgress)),
		ProgressEvent(models.ProgressEntry{Step: models.StepDeploying, Message: "deploying"}),
	)

	var buf bytes.Buffer
	require.NoError(t, WriteSSE(context.Background(), bufio.NewWriter(&buf), sub, time.Minute))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "event: state\ndata: {\"type\":\"state\""))
	assert.Contains(t, out, "event: progress\ndata: {\"type\":\"progress\",\"entry\":{\"step\":\"deploying\"")
	assert.Equal(t, 2, strings.Count(out, "\n\n"))
}

func TestWriteSSE_Keepalive(t *testing.T) {
	hub := NewHub(slog.Default())
	sub := hub.Subscribe("dep-1")

	var buf bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := WriteSSE(ctx, bufio.NewWriter(&buf), sub, 10*time.Millisecond)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, buf.String(), ": keepalive\n\n")
}
