package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/autograph/pkg/channels/gochannel"
	"github.com/dukex/autograph/pkg/eventbus"
	"github.com/dukex/autograph/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	defer bus.Close()

	received := make(chan *events.WorkflowRejected, 1)

	require.NoError(t, bus.Handle(events.WorkflowRejectedEvent, func(_ context.Context, event any) error {
		rejected, ok := event.(*events.WorkflowRejected)
		assert.True(t, ok)
		received <- rejected

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "conv-1", events.WorkflowRefused{
		BaseEvent: events.NewBaseEvent(events.WorkflowRefusedEvent, "conv-1", ""),
		Reason:    "unhandled type is acked and skipped",
	}))

	require.NoError(t, bus.Publish(ctx, "conv-1", events.WorkflowRejected{
		BaseEvent: events.NewBaseEvent(events.WorkflowRejectedEvent, "conv-1", "wf-1"),
		Kind:      "parse_error",
		Reason:    "unexpected end of JSON input",
	}))

	select {
	case event := <-received:
		assert.Equal(t, "conv-1", event.ConversationID)
		assert.Equal(t, "parse_error", event.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	defer bus.Close()

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
