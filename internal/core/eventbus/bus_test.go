package eventbus_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/duetoday/internal/core/badge"
	"github.com/colonyops/duetoday/internal/core/eventbus"
	"github.com/colonyops/duetoday/internal/core/eventbus/testbus"
)

func TestEventBus_PublishReachesSubscriber(t *testing.T) {
	bus := testbus.New(t)

	bus.PublishTimerStarted(eventbus.TimerStartedPayload{TaskID: "t1"})

	require.True(t, bus.WaitFor(eventbus.EventTimerStarted, time.Second))
	events := bus.Events()
	require.Len(t, events, 1)
	payload, ok := events[0].Payload.(eventbus.TimerStartedPayload)
	require.True(t, ok)
	assert.Equal(t, "t1", payload.TaskID)
}

func TestEventBus_EventsDoNotCrossTypes(t *testing.T) {
	bus := testbus.New(t)

	bus.PublishBadgeUpdated(eventbus.BadgeUpdatedPayload{Badge: badge.Count(3)})
	require.True(t, bus.WaitFor(eventbus.EventBadgeUpdated, time.Second))

	for _, rec := range bus.Events() {
		assert.Equal(t, eventbus.EventBadgeUpdated, rec.Event)
	}
}

func TestEventBus_SubscriberPanicIsContained(t *testing.T) {
	bus := testbus.New(t)

	var panicked eventbus.Event
	bus.OnPanic(func(event eventbus.Event, _ any, _ any) {
		panicked = event
	})
	bus.SubscribeTasksRefreshed(func(eventbus.TasksRefreshedPayload) {
		panic("boom")
	})

	bus.PublishTasksRefreshed(eventbus.TasksRefreshedPayload{Count: 1})

	// The recording subscriber still sees the event despite the panic.
	require.True(t, bus.WaitFor(eventbus.EventTasksRefreshed, time.Second))
	assert.Eventually(t, func() bool {
		return panicked == eventbus.EventTasksRefreshed
	}, time.Second, 5*time.Millisecond)
}

func TestEventBus_DropsWhenBufferFull(t *testing.T) {
	bus := eventbus.New(1) // never started, so the buffer fills

	var dropped int
	bus.OnDrop(func(eventbus.Event, any) { dropped++ })

	bus.PublishBadgeRecomputeRequested(eventbus.BadgeRecomputeRequestedPayload{})
	bus.PublishBadgeRecomputeRequested(eventbus.BadgeRecomputeRequestedPayload{})

	assert.Equal(t, 1, dropped)
}
