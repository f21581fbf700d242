// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/dukex/flowforge/pkg/channels/gochannel"
	"github.com/dukex/flowforge/pkg/channels/kafka"
	"github.com/dukex/flowforge/pkg/eventbus"
)

const serviceName = "flowforge"

// NewEventBus builds the deployment event bus. "memory" keeps events in
// process; "kafka" needs at least one broker.
func NewEventBus(provider string, brokers []string, logger *slog.Logger) (*eventbus.WatermillEventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	var (
		pub message.Publisher
		sub message.Subscriber
	)

	switch provider {
	case "", "memory", "gochannel":
		pub, sub = gochannel.CreateChannel(wmLogger)
	case "kafka":
		kafkaPub, kafkaSub, err := kafka.CreateChannel(wmLogger, brokers, serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		pub, sub = kafkaPub, kafkaSub
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}

	return eventbus.NewWatermillEventBus(pub, sub, logger), nil
}
