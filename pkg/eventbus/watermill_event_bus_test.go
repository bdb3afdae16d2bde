package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookplane/hookplane/pkg/channels/gochannel"
	"github.com/hookplane/hookplane/pkg/eventbus"
	"github.com/hookplane/hookplane/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	t.Cleanup(func() {
		_ = bus.Close()
	})

	return bus
}

func TestPublishAndHandle_SourceEvent(t *testing.T) {
	bus := newTestBus(t)
	ctx := t.Context()

	received := make(chan *events.SourceEvent, 1)

	err := bus.Handle(events.SourceEventType, func(_ context.Context, event any) error {
		sourceEvent, ok := event.(*events.SourceEvent)
		require.True(t, ok)
		received <- sourceEvent

		return nil
	})
	require.NoError(t, err)
	require.NoError(t, bus.Subscribe(ctx))

	event := events.SourceEvent{
		BaseEvent: events.NewBaseEvent(events.SourceEventType, "wf-1"),
		NodeName:  "On Event",
		Payload:   map[string]any{"k": "v"},
	}
	event.ID = bus.GenerateID()

	require.NoError(t, bus.Publish(ctx, "wf-1", event))

	select {
	case got := <-received:
		assert.Equal(t, "wf-1", got.WorkflowID)
		assert.Equal(t, "On Event", got.NodeName)
		assert.Equal(t, map[string]any{"k": "v"}, got.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("source event was not delivered")
	}
}

func TestPublish_UnhandledTypeAcked(t *testing.T) {
	bus := newTestBus(t)
	ctx := t.Context()

	require.NoError(t, bus.Subscribe(ctx))

	event := events.WorkflowDeactivated{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeactivatedEvent, "wf-1"),
	}
	event.ID = bus.GenerateID()

	// No handler registered; publishing must still succeed.
	require.NoError(t, bus.Publish(ctx, "wf-1", event))
}

func TestGenerateID_Unique(t *testing.T) {
	bus := newTestBus(t)

	first := bus.GenerateID()
	second := bus.GenerateID()

	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}
