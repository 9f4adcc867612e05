package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/relaycrm/relay/pkg/channels/gochannel"
	"github.com/relaycrm/relay/pkg/channels/kafka"
	"github.com/relaycrm/relay/pkg/eventbus"
	"github.com/relaycrm/relay/pkg/events"
)

// NewEventBus builds the bus for a topic. The kafka provider needs a broker
// list; gochannel is in-memory and only suitable for a single process.
func NewEventBus(provider, topic, brokers, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wmLogger, strings.Split(brokers, ","), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(topic, pub, sub), nil
	case "gochannel":
		pub, sub := gochannel.CreateChannel(wmLogger)

		return eventbus.NewWatermillEventBus(topic, pub, sub), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}

// NewBusinessEventBus builds the bus carrying CRM events into the binder.
func NewBusinessEventBus(provider, brokers, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	return NewEventBus(provider, events.BusinessTopic, brokers, serviceName, logger)
}

// NewExecutionEventBus builds the bus the engine publishes lifecycle events to.
func NewExecutionEventBus(provider, brokers, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	return NewEventBus(provider, events.ExecutionTopic, brokers, serviceName, logger)
}
