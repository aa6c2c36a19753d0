// Package testbus provides test utilities for the event bus.
// It wraps a real EventBus with event recording and assertion helpers.
package testbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/colonyops/duetoday/internal/core/eventbus"
)

// RecordedEvent holds a captured event name and payload.
type RecordedEvent struct {
	Event   eventbus.Event
	Payload any
}

// Bus wraps a real EventBus with event recording for tests.
type Bus struct {
	*eventbus.EventBus
	cancel context.CancelFunc

	mu     sync.Mutex
	events []RecordedEvent
}

// New creates a test bus, starts it in a background goroutine, and
// subscribes to all event types for recording. The bus is stopped
// when the test completes.
func New(t *testing.T) *Bus {
	t.Helper()

	bus := eventbus.New(64)
	ctx, cancel := context.WithCancel(context.Background())

	tb := &Bus{
		EventBus: bus,
		cancel:   cancel,
	}

	// Subscribe to all event types for recording.
	bus.SubscribeSettingsChanged(func(p eventbus.SettingsChangedPayload) {
		tb.record(eventbus.EventSettingsChanged, p)
	})
	bus.SubscribeBadgeRecomputeRequested(func(p eventbus.BadgeRecomputeRequestedPayload) {
		tb.record(eventbus.EventBadgeRecomputeRequested, p)
	})
	bus.SubscribeBadgeUpdated(func(p eventbus.BadgeUpdatedPayload) {
		tb.record(eventbus.EventBadgeUpdated, p)
	})
	bus.SubscribeIdleStateChanged(func(p eventbus.IdleStateChangedPayload) {
		tb.record(eventbus.EventIdleStateChanged, p)
	})
	bus.SubscribeNotificationPublished(func(p eventbus.NotificationPublishedPayload) {
		tb.record(eventbus.EventNotificationPublished, p)
	})
	bus.SubscribeTasksRefreshed(func(p eventbus.TasksRefreshedPayload) {
		tb.record(eventbus.EventTasksRefreshed, p)
	})
	bus.SubscribeTimerStarted(func(p eventbus.TimerStartedPayload) {
		tb.record(eventbus.EventTimerStarted, p)
	})
	bus.SubscribeTimerStopped(func(p eventbus.TimerStoppedPayload) {
		tb.record(eventbus.EventTimerStopped, p)
	})

	go bus.Start(ctx)
	t.Cleanup(cancel)

	return tb
}

func (b *Bus) record(event eventbus.Event, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, RecordedEvent{Event: event, Payload: payload})
}

// Events returns a copy of all recorded events.
func (b *Bus) Events() []RecordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RecordedEvent, len(b.events))
	copy(out, b.events)
	return out
}

// WaitFor blocks until an event with the given name is recorded or the
// timeout elapses, returning whether it was seen.
func (b *Bus) WaitFor(event eventbus.Event, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, rec := range b.Events() {
			if rec.Event == event {
				return true
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// Reset clears recorded events.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}
