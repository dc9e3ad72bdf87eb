package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowstore/pkg/channels/gochannel"
	"github.com/dukex/flowstore/pkg/channels/kafka"
	"github.com/dukex/flowstore/pkg/eventbus"
)

// NewEventBus creates the bus lifecycle events are published to. An empty
// provider disables publishing and returns nil.
func NewEventBus(provider, brokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "":
		return nil, nil
	case "memory":
		pub, sub := gochannel.CreateChannel(wmLogger)

		return eventbus.NewWatermillEventBus(pub, sub), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, kafka.ParseBrokers(brokers), "flowstore")
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), nil
	default:
		return nil, UnsupportedProviderError{Kind: "event bus", Provider: provider}
	}
}
