package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultKeepalive is the interval between SSE comment lines on an idle stream.
const DefaultKeepalive = 15 * time.Second

// WriteSSE copies events from sub to w as server-sent events until the
// subscriber channel closes, ctx ends or a write fails. Keepalive comments are
// written on their own ticker regardless of event traffic.
func WriteSSE(ctx context.Context, w *bufio.Writer, sub *Subscriber, keepalive time.Duration) error {
	if keepalive <= 0 {
		keepalive = DefaultKeepalive
	}

	ticker := time.NewTicker(keepalive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, err := w.WriteString(": keepalive\n\n")
			if err == nil {
				err = w.Flush()
			}

			if err != nil {
				return err
			}
		case event, ok := <-sub.C():
			if !ok {
				return nil
			}

			err := writeEvent(w, event)
			if err != nil {
				return err
			}
		}
	}
}

func writeEvent(w *bufio.Writer, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", event.Kind, err)
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, payload)
	if err != nil {
		return err
	}

	return w.Flush()
}
