package stream

// Subscriber receives the events of one topic on a buffered channel. The
// channel is closed when the topic closes, when the subscriber falls behind or
// on Close.
type Subscriber struct {
	hub   *Hub
	id    uint64
	topic string
	ch    chan Event

	// guarded by hub.mu
	closed bool
}

func newSubscriber(hub *Hub, id uint64, topic string, buffer int) *Subscriber {
	return &Subscriber{
		hub:   hub,
		id:    id,
		topic: topic,
		ch:    make(chan Event, buffer),
	}
}

func (s *Subscriber) C() <-chan Event {
	return s.ch
}

func (s *Subscriber) Topic() string {
	return s.topic
}

// Close leaves the topic. Safe to call more than once.
func (s *Subscriber) Close() {
	if s.hub == nil {
		return
	}

	s.hub.unsubscribe(s)
}
