package duetoday

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/duetoday/internal/core/badge"
	"github.com/colonyops/duetoday/internal/core/eventbus"
	"github.com/colonyops/duetoday/internal/core/notify"
	"github.com/colonyops/duetoday/internal/core/settings"
	"github.com/colonyops/duetoday/internal/core/task"
	"github.com/colonyops/duetoday/internal/core/timer"
	"github.com/colonyops/duetoday/pkg/kv"
)

// Tick cadences. The badge tolerates staleness; due-soon notifications
// need minute resolution to hit their lead window.
const (
	badgeTickInterval  = 5 * time.Minute
	notifyTickInterval = 1 * time.Minute
)

// TaskSource lists the tasks due today. *Service satisfies it.
type TaskSource interface {
	DueTasks(ctx context.Context, includeOverdue bool) ([]task.Task, error)
}

// Scheduler keeps the persisted badge current and fires due-soon
// notifications. It recomputes on a fixed cadence and immediately on
// badge.recompute-requested events.
type Scheduler struct {
	tasks    TaskSource
	timers   *timer.Registry
	settings *settings.Store
	badges   *badge.Store
	notifier notify.Notifier
	bus      *eventbus.EventBus
	log      zerolog.Logger

	// now is swappable for tests.
	now func() time.Time

	// notified maps task id to due instant for tasks already notified,
	// so a task is announced at most once per due time.
	notified *kv.Store[string, time.Time]

	refresh chan struct{}
}

// NewScheduler creates a scheduler and subscribes it to recompute
// requests on the bus.
func NewScheduler(
	tasks TaskSource,
	timers *timer.Registry,
	st *settings.Store,
	badges *badge.Store,
	notifier notify.Notifier,
	bus *eventbus.EventBus,
	log zerolog.Logger,
) *Scheduler {
	s := &Scheduler{
		tasks:    tasks,
		timers:   timers,
		settings: st,
		badges:   badges,
		notifier: notifier,
		bus:      bus,
		log:      log,
		now:      time.Now,
		notified: kv.New[string, time.Time](),
		refresh:  make(chan struct{}, 1),
	}
	bus.SubscribeBadgeRecomputeRequested(func(eventbus.BadgeRecomputeRequestedPayload) {
		s.requestRefresh()
	})
	return s
}

// requestRefresh queues an immediate badge recompute. Requests collapse
// while one is pending.
func (s *Scheduler) requestRefresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

// Run computes the badge once, then ticks until the context is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.RefreshBadge(ctx)

	badgeTicker := time.NewTicker(badgeTickInterval)
	defer badgeTicker.Stop()
	notifyTicker := time.NewTicker(notifyTickInterval)
	defer notifyTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.refresh:
			s.RefreshBadge(ctx)
		case <-badgeTicker.C:
			s.RefreshBadge(ctx)
		case <-notifyTicker.C:
			s.NotifyDueSoon(ctx)
		}
	}
}

// RefreshBadge recomputes the badge and persists it when it changed.
func (s *Scheduler) RefreshBadge(ctx context.Context) {
	next := s.computeBadge(ctx)

	current, err := s.badges.Get(ctx)
	if err == nil && current == next {
		return
	}

	if err := s.badges.Set(ctx, next); err != nil {
		s.log.Warn().Err(err).Msg("persist badge failed")
		return
	}

	s.log.Debug().Str("text", next.Text).Bool("recording", next.Recording).Msg("badge updated")
	s.bus.PublishBadgeUpdated(eventbus.BadgeUpdatedPayload{Badge: next})
}

// computeBadge derives the badge from current state. A running timer
// wins over any count; any failure clears rather than shows stale data.
func (s *Scheduler) computeBadge(ctx context.Context) badge.Badge {
	if s.timers.Recording(ctx) {
		return badge.RecordingBadge()
	}

	st, err := s.settings.Load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("load settings for badge failed")
		return badge.Clear
	}
	if !st.Enabled(settings.FeatureBadgeCount) {
		return badge.Clear
	}

	cred, err := s.settings.Credential(ctx)
	if err != nil || cred == "" {
		return badge.Clear
	}

	tasks, err := s.tasks.DueTasks(ctx, st.Enabled(settings.FeatureShowOverdue))
	if err != nil {
		s.log.Warn().Err(err).Msg("task fetch for badge failed; clearing badge")
		return badge.Clear
	}

	return badge.Count(len(tasks))
}

// NotifyDueSoon announces tasks entering their notification lead
// window, at most once per task per due time.
func (s *Scheduler) NotifyDueSoon(ctx context.Context) {
	st, err := s.settings.Load(ctx)
	if err != nil || !st.NotificationsEnabled() {
		return
	}
	cred, err := s.settings.Credential(ctx)
	if err != nil || cred == "" {
		return
	}

	tasks, err := s.tasks.DueTasks(ctx, false)
	if err != nil {
		s.log.Debug().Err(err).Msg("task fetch for notifications failed")
		return
	}

	now := s.now()
	lead := st.NotificationLead()
	pending := map[string]bool{}

	for _, t := range tasks {
		if !t.DueSoon(now, lead) {
			continue
		}
		pending[t.ID] = true

		if due, seen := s.notified.Get(t.ID); seen && due.Equal(*t.DueDate) {
			continue
		}

		n := notify.Notification{
			Key:   t.ID,
			Title: "Due soon: " + t.Name,
			Body:  fmt.Sprintf("Due at %s", t.DueDate.Local().Format("15:04")),
			Level: notify.LevelInfo,
		}
		if err := s.notifier.Notify(ctx, n); err != nil {
			s.log.Warn().Err(err).Str("task_id", t.ID).Msg("notification delivery failed")
			continue
		}

		s.notified.Set(t.ID, *t.DueDate)
		s.bus.PublishNotificationPublished(eventbus.NotificationPublishedPayload{Notification: n})
	}

	// Drop entries for tasks that left the due-soon set or whose
	// recorded due time has passed, so a task rescheduled into a future
	// lead window notifies again. Entries for still-pending tasks stay;
	// the due-equality check above keeps those from re-firing.
	s.notified.DeleteFunc(func(id string, due time.Time) bool {
		return !pending[id] || due.Before(now)
	})
}
