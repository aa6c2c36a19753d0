// Package eventbus provides a typed publish/subscribe event bus for
// cross-component communication inside the daemon.
package eventbus

import (
	"time"

	"github.com/colonyops/duetoday/internal/core/badge"
	"github.com/colonyops/duetoday/internal/core/idle"
	"github.com/colonyops/duetoday/internal/core/notify"
	"github.com/colonyops/duetoday/internal/core/settings"
)

// Event names the closed set of event variants.
type Event string

const (
	// Keep list sorted A-Z
	EventBadgeRecomputeRequested Event = "badge.recompute-requested"
	EventBadgeUpdated            Event = "badge.updated"
	EventIdleStateChanged        Event = "idle.state-changed"
	EventNotificationPublished   Event = "notification.published"
	EventSettingsChanged         Event = "settings.changed"
	EventTasksRefreshed          Event = "tasks.refreshed"
	EventTimerStarted            Event = "timer.started"
	EventTimerStopped            Event = "timer.stopped"
)

// SettingsChangedPayload is emitted when the persisted settings record
// changes; the scheduler recomputes the badge in response.
type SettingsChangedPayload struct {
	Settings settings.Settings
}

// BadgeRecomputeRequestedPayload asks the scheduler for an immediate
// badge refresh outside its regular tick.
type BadgeRecomputeRequestedPayload struct{}

// BadgeUpdatedPayload is emitted after the scheduler writes a badge.
type BadgeUpdatedPayload struct {
	Badge badge.Badge
}

// IdleStateChangedPayload is emitted on idle monitor transitions.
type IdleStateChangedPayload struct {
	Old  idle.State
	Next idle.State
}

// NotificationPublishedPayload is emitted when a due-soon notification
// fires.
type NotificationPublishedPayload struct {
	Notification notify.Notification
}

// TasksRefreshedPayload is emitted after a due-today fetch completes.
type TasksRefreshedPayload struct {
	Count int
}

// TimerStartedPayload is emitted when a timer starts.
type TimerStartedPayload struct {
	TaskID string
}

// TimerStoppedPayload is emitted when a timer stops. Logged is false
// when the time-log submission failed and the duration was dropped.
type TimerStoppedPayload struct {
	TaskID   string
	Duration time.Duration
	Logged   bool
}
