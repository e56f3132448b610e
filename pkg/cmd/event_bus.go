package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/socialflow/pkg/channels/gochannel"
	"github.com/dukex/socialflow/pkg/channels/kafka"
	"github.com/dukex/socialflow/pkg/eventbus"
)

const serviceName = "socialflow"

// NewEventBus creates the lifecycle event bus for provider. An empty provider disables events.
func NewEventBus(provider, brokers string, logger *slog.Logger) (eventbus.EventBus, error) {
	watermillLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "", "none":
		return eventbus.Nop{}, nil
	case "memory", "gochannel":
		pub, sub := gochannel.CreateChannel(gochannel.Config{}, watermillLogger)

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, kafka.ParseBrokers(brokers), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger), nil
	default:
		return nil, fmt.Errorf("%w: event bus %q", ErrUnsupportedProvider, provider)
	}
}
