// Package eventbus publishes workflow lifecycle events over watermill.
package eventbus

import (
	"context"

	"github.com/dukex/autograph/pkg/events"
)

// Event is any lifecycle event payload.
type Event interface {
	GetType() events.EventType
}

// EventPublisher publishes lifecycle events. The key is the conversation id and
// orders events of one conversation on partitioned transports.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber dispatches received events to the handler registered for their type.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives a pointer to the decoded event struct.
type EventHandler func(ctx context.Context, event any) error

// EventBus is a publisher and subscriber over one transport.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
