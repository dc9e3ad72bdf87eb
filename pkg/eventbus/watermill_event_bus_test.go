package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/flowstore/pkg/channels/gochannel"
	"github.com/dukex/flowstore/pkg/eventbus"
	"github.com/dukex/flowstore/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.NewWatermillEventBus(gochannel.CreateChannel(watermill.NopLogger{}))

	t.Cleanup(func() {
		assert.NoError(t, bus.Close())
	})

	received := make(chan *events.WorkflowGraphReplaced, 1)

	require.NoError(t, bus.Handle(events.WorkflowGraphReplacedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowGraphReplaced)

		return nil
	}))

	require.NoError(t, bus.Subscribe(ctx))

	// Unhandled types are acknowledged and skipped.
	require.NoError(t, bus.Publish(ctx, "wfl_abc123", events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, "wfl_abc123", "user_1"),
	}))

	require.NoError(t, bus.Publish(ctx, "wfl_abc123", events.WorkflowGraphReplaced{
		BaseEvent:    events.NewBaseEvent(events.WorkflowGraphReplacedEvent, "wfl_abc123", "user_1"),
		NodeCount:    2,
		EdgeCount:    1,
		CoercedNodes: []string{"nd_1"},
	}))

	select {
	case event := <-received:
		assert.Equal(t, "wfl_abc123", event.WorkflowID)
		assert.Equal(t, 2, event.NodeCount)
		assert.Equal(t, 1, event.EdgeCount)
		assert.Equal(t, []string{"nd_1"}, event.CoercedNodes)
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestWatermillEventBus_DeliversInPublishOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := eventbus.NewWatermillEventBus(gochannel.CreateTestChannel(watermill.NopLogger{}))

	t.Cleanup(func() {
		assert.NoError(t, bus.Close())
	})

	received := make(chan string, 2)

	require.NoError(t, bus.Handle(events.WorkflowRenamedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowRenamed).Name

		return nil
	}))

	require.NoError(t, bus.Subscribe(ctx))

	for _, name := range []string{"first", "second"} {
		require.NoError(t, bus.Publish(ctx, "wfl_abc123", events.WorkflowRenamed{
			BaseEvent: events.NewBaseEvent(events.WorkflowRenamedEvent, "wfl_abc123", "user_1"),
			Name:      name,
		}))
	}

	assert.Equal(t, "first", <-received)
	assert.Equal(t, "second", <-received)
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	bus := eventbus.NewWatermillEventBus(gochannel.CreateChannel(watermill.NopLogger{}))

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
