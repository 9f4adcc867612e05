// Package eventbus provides the pub/sub plumbing workflows are triggered
// over and execution lifecycle events are published to.
package eventbus

import (
	"context"

	"github.com/relaycrm/relay/pkg/events"
)

type EventHandler func(ctx context.Context, event any) error

type EventPublisher interface {
	Publish(ctx context.Context, key string, event events.Event) error
}

type EventSubscriber interface {
	// Handle registers a handler for one event type. Registration must
	// happen before Subscribe.
	Handle(eventType events.EventType, handler EventHandler) error

	// Subscribe starts consuming the bus topic until ctx is done.
	Subscribe(ctx context.Context) error
}

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
