package eventbus

import (
	"context"
	"sync"
)

type envelope struct {
	event   Event
	payload any
}

// EventBus dispatches typed events to subscribers on a single
// dispatch goroutine, so handlers never run concurrently with each
// other. Publishing never blocks: when the buffer is full the event is
// dropped and the OnDrop hooks fire.
type EventBus struct {
	ch    chan envelope
	hooks hooks

	mu   sync.RWMutex
	subs map[Event][]func(any)
}

// New creates a bus with the given buffer size.
func New(buffer int) *EventBus {
	return &EventBus{
		ch:   make(chan envelope, buffer),
		subs: map[Event][]func(any){},
	}
}

// Start runs the dispatch loop until the context is cancelled.
func (bus *EventBus) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-bus.ch:
			bus.dispatch(env)
		}
	}
}

func (bus *EventBus) dispatch(env envelope) {
	bus.mu.RLock()
	subs := make([]func(any), len(bus.subs[env.event]))
	copy(subs, bus.subs[env.event])
	bus.mu.RUnlock()

	for _, fn := range subs {
		bus.call(env, fn)
	}
}

func (bus *EventBus) call(env envelope, fn func(any)) {
	defer func() {
		if recovered := recover(); recovered != nil {
			bus.runOnPanic(env.event, env.payload, recovered)
		}
	}()
	fn(env.payload)
}

func (bus *EventBus) subscribe(event Event, fn func(any)) {
	bus.mu.Lock()
	bus.subs[event] = append(bus.subs[event], fn)
	bus.mu.Unlock()
	bus.runOnSubscribe(event)
}

// PublishSettingsChanged publishes a settings.changed event.
func (bus *EventBus) PublishSettingsChanged(p SettingsChangedPayload) {
	bus.send(EventSettingsChanged, p)
}

// SubscribeSettingsChanged registers a handler for settings.changed.
func (bus *EventBus) SubscribeSettingsChanged(fn func(SettingsChangedPayload)) {
	bus.subscribe(EventSettingsChanged, func(p any) { fn(p.(SettingsChangedPayload)) })
}

// PublishBadgeRecomputeRequested publishes a badge.recompute-requested event.
func (bus *EventBus) PublishBadgeRecomputeRequested(p BadgeRecomputeRequestedPayload) {
	bus.send(EventBadgeRecomputeRequested, p)
}

// SubscribeBadgeRecomputeRequested registers a handler for badge.recompute-requested.
func (bus *EventBus) SubscribeBadgeRecomputeRequested(fn func(BadgeRecomputeRequestedPayload)) {
	bus.subscribe(EventBadgeRecomputeRequested, func(p any) { fn(p.(BadgeRecomputeRequestedPayload)) })
}

// PublishBadgeUpdated publishes a badge.updated event.
func (bus *EventBus) PublishBadgeUpdated(p BadgeUpdatedPayload) {
	bus.send(EventBadgeUpdated, p)
}

// SubscribeBadgeUpdated registers a handler for badge.updated.
func (bus *EventBus) SubscribeBadgeUpdated(fn func(BadgeUpdatedPayload)) {
	bus.subscribe(EventBadgeUpdated, func(p any) { fn(p.(BadgeUpdatedPayload)) })
}

// PublishIdleStateChanged publishes an idle.state-changed event.
func (bus *EventBus) PublishIdleStateChanged(p IdleStateChangedPayload) {
	bus.send(EventIdleStateChanged, p)
}

// SubscribeIdleStateChanged registers a handler for idle.state-changed.
func (bus *EventBus) SubscribeIdleStateChanged(fn func(IdleStateChangedPayload)) {
	bus.subscribe(EventIdleStateChanged, func(p any) { fn(p.(IdleStateChangedPayload)) })
}

// PublishNotificationPublished publishes a notification.published event.
func (bus *EventBus) PublishNotificationPublished(p NotificationPublishedPayload) {
	bus.send(EventNotificationPublished, p)
}

// SubscribeNotificationPublished registers a handler for notification.published.
func (bus *EventBus) SubscribeNotificationPublished(fn func(NotificationPublishedPayload)) {
	bus.subscribe(EventNotificationPublished, func(p any) { fn(p.(NotificationPublishedPayload)) })
}

// PublishTasksRefreshed publishes a tasks.refreshed event.
func (bus *EventBus) PublishTasksRefreshed(p TasksRefreshedPayload) {
	bus.send(EventTasksRefreshed, p)
}

// SubscribeTasksRefreshed registers a handler for tasks.refreshed.
func (bus *EventBus) SubscribeTasksRefreshed(fn func(TasksRefreshedPayload)) {
	bus.subscribe(EventTasksRefreshed, func(p any) { fn(p.(TasksRefreshedPayload)) })
}

// PublishTimerStarted publishes a timer.started event.
func (bus *EventBus) PublishTimerStarted(p TimerStartedPayload) {
	bus.send(EventTimerStarted, p)
}

// SubscribeTimerStarted registers a handler for timer.started.
func (bus *EventBus) SubscribeTimerStarted(fn func(TimerStartedPayload)) {
	bus.subscribe(EventTimerStarted, func(p any) { fn(p.(TimerStartedPayload)) })
}

// PublishTimerStopped publishes a timer.stopped event.
func (bus *EventBus) PublishTimerStopped(p TimerStoppedPayload) {
	bus.send(EventTimerStopped, p)
}

// SubscribeTimerStopped registers a handler for timer.stopped.
func (bus *EventBus) SubscribeTimerStopped(fn func(TimerStoppedPayload)) {
	bus.subscribe(EventTimerStopped, func(p any) { fn(p.(TimerStoppedPayload)) })
}
