// Package stream fans deployment progress out to live readers.
package stream

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/dukex/flowforge/pkg/models"
)

// DefaultBufferSize is the per-subscriber event buffer.
const DefaultBufferSize = 64

type EventKind string

const (
	KindState    EventKind = "state"
	KindProgress EventKind = "progress"
)

// Event is either a full state snapshot or a single appended progress entry.
type Event struct {
	Kind  EventKind               `json:"type"`
	State *models.DeploymentState `json:"state,omitempty"`
	Entry *models.ProgressEntry   `json:"entry,omitempty"`
}

func StateEvent(state *models.DeploymentState) Event {
	return Event{Kind: KindState, State: state.Clone()}
}

func ProgressEvent(entry models.ProgressEntry) Event {
	return Event{Kind: KindProgress, Entry: &entry}
}

// Hub keeps one topic per deployment id. Publishing never blocks: a subscriber
// whose buffer is full is closed and removed.
type Hub struct {
	logger     *slog.Logger
	bufferSize int

	mu     sync.Mutex
	topics map[string]map[uint64]*Subscriber
	nextID uint64

	dropped atomic.Int64
}

type HubOption func(*Hub)

func WithBufferSize(size int) HubOption {
	return func(h *Hub) {
		if size > 0 {
			h.bufferSize = size
		}
	}
}

func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		logger:     logger.With("module", "stream_hub"),
		bufferSize: DefaultBufferSize,
		topics:     make(map[string]map[uint64]*Subscriber),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Subscribe joins topic. The initial events are queued ahead of anything
// published afterwards.
func (h *Hub) Subscribe(topic string, initial ...Event) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++

	sub := newSubscriber(h, h.nextID, topic, max(h.bufferSize, len(initial)+1))
	for _, event := range initial {
		sub.ch <- event
	}

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[uint64]*Subscriber)
		h.topics[topic] = subs
	}

	subs[sub.id] = sub

	return sub
}

// Detached returns a subscriber that only replays the given events and is
// already closed, for readers arriving after a topic finished.
func Detached(events ...Event) *Subscriber {
	sub := newSubscriber(nil, 0, "", len(events))
	for _, event := range events {
		sub.ch <- event
	}

	sub.closed = true
	close(sub.ch)

	return sub
}

// Publish delivers event to every subscriber of topic and returns how many received it.
func (h *Hub) Publish(topic string, event Event) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0

	for id, sub := range h.topics[topic] {
		select {
		case sub.ch <- event:
			delivered++
		default:
			h.dropped.Add(1)
			h.logger.Warn("Dropping slow stream subscriber", "topic", topic, "subscriber", id)
			h.removeLocked(sub)
		}
	}

	return delivered
}

// CloseTopic closes every subscriber of topic. Later subscribers start a new topic.
func (h *Hub) CloseTopic(topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.topics[topic] {
		h.removeLocked(sub)
	}

	delete(h.topics, topic)
}

// Subscribers reports the live subscriber count of topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.topics[topic])
}

// Dropped reports how many subscribers were removed for falling behind.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

func (h *Hub) unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(sub)
}

// removeLocked must be called with h.mu held.
func (h *Hub) removeLocked(sub *Subscriber) {
	if sub.closed {
		return
	}

	sub.closed = true
	close(sub.ch)

	if subs, ok := h.topics[sub.topic]; ok {
		delete(subs, sub.id)

		if len(subs) == 0 {
			delete(h.topics, sub.topic)
		}
	}
}
