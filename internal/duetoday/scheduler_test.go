package duetoday

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/duetoday/internal/core/badge"
	"github.com/colonyops/duetoday/internal/core/eventbus"
	"github.com/colonyops/duetoday/internal/core/notify"
	"github.com/colonyops/duetoday/internal/core/settings"
	"github.com/colonyops/duetoday/internal/core/task"
	"github.com/colonyops/duetoday/internal/core/timer"
	"github.com/colonyops/duetoday/internal/data/db"
	"github.com/colonyops/duetoday/internal/data/stores"
)

// fakeTaskSource returns a canned task list.
type fakeTaskSource struct {
	tasks []task.Task
	err   error
}

func (f *fakeTaskSource) DueTasks(context.Context, bool) ([]task.Task, error) {
	return f.tasks, f.err
}

// fakeNotifier records delivered notifications.
type fakeNotifier struct {
	sent []notify.Notification
	err  error
}

func (f *fakeNotifier) Notify(_ context.Context, n notify.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

type schedulerFixture struct {
	scheduler *Scheduler
	source    *fakeTaskSource
	notifier  *fakeNotifier
	badges    *badge.Store
	settings  *settings.Store
	timers    *timer.Registry
}

func newTestScheduler(t *testing.T) *schedulerFixture {
	t.Helper()

	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	synced := stores.NewKVStore(database, stores.BucketSynced)
	local := stores.NewKVStore(database, stores.BucketLocal)

	st := settings.NewStore(synced)
	registry := timer.NewRegistry(context.Background(), local, zerolog.Nop())
	badges := badge.NewStore(local)
	source := &fakeTaskSource{}
	notifier := &fakeNotifier{}

	scheduler := NewScheduler(source, registry, st, badges, notifier, eventbus.New(32), zerolog.Nop())

	require.NoError(t, st.SetCredential(context.Background(), "pk_test"))

	return &schedulerFixture{
		scheduler: scheduler,
		source:    source,
		notifier:  notifier,
		badges:    badges,
		settings:  st,
		timers:    registry,
	}
}

func TestScheduler_RefreshBadge_CountsDueTasks(t *testing.T) {
	fix := newTestScheduler(t)
	fix.source.tasks = []task.Task{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	fix.scheduler.RefreshBadge(context.Background())

	got, err := fix.badges.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "3", got.Text)
	assert.False(t, got.Recording)
}

func TestScheduler_RefreshBadge_ZeroTasksClears(t *testing.T) {
	fix := newTestScheduler(t)
	require.NoError(t, fix.badges.Set(context.Background(), badge.Count(5)))

	fix.scheduler.RefreshBadge(context.Background())

	got, err := fix.badges.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, badge.Clear, got)
}

func TestScheduler_RefreshBadge_RecordingWinsOverCount(t *testing.T) {
	fix := newTestScheduler(t)
	fix.source.tasks = []task.Task{{ID: "a"}}
	require.NoError(t, fix.timers.Start(context.Background(), "a", time.Now()))

	fix.scheduler.RefreshBadge(context.Background())

	got, err := fix.badges.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, got.Recording)
	assert.Equal(t, "REC", got.Text)
}

func TestScheduler_RefreshBadge_NoCredentialClears(t *testing.T) {
	fix := newTestScheduler(t)
	require.NoError(t, fix.settings.SetCredential(context.Background(), ""))
	fix.source.tasks = []task.Task{{ID: "a"}}
	require.NoError(t, fix.badges.Set(context.Background(), badge.Count(5)))

	fix.scheduler.RefreshBadge(context.Background())

	got, err := fix.badges.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, badge.Clear, got)
}

func TestScheduler_RefreshBadge_FetchFailureClears(t *testing.T) {
	fix := newTestScheduler(t)
	require.NoError(t, fix.badges.Set(context.Background(), badge.Count(5)))
	fix.source.err = errors.New("api down")

	fix.scheduler.RefreshBadge(context.Background())

	got, err := fix.badges.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, badge.Clear, got)
}

func TestScheduler_RefreshBadge_FeatureDisabled(t *testing.T) {
	fix := newTestScheduler(t)
	disabled := settings.Default()
	disabled.Features[settings.FeatureBadgeCount] = false
	require.NoError(t, fix.settings.Save(context.Background(), disabled))
	fix.source.tasks = []task.Task{{ID: "a"}}

	fix.scheduler.RefreshBadge(context.Background())

	got, err := fix.badges.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, badge.Clear, got)
}

func enableNotifications(t *testing.T, st *settings.Store, minutes int) {
	t.Helper()
	s := settings.Default()
	s.Features[settings.FeatureNotifications] = true
	s.NotificationMinutes = minutes
	require.NoError(t, st.Save(context.Background(), s))
}

func TestScheduler_NotifyDueSoon_FiresOncePerDueTime(t *testing.T) {
	fix := newTestScheduler(t)
	enableNotifications(t, fix.settings, 15)

	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fix.scheduler.now = func() time.Time { return now }

	due := now.Add(10 * time.Minute)
	fix.source.tasks = []task.Task{{ID: "a", Name: "write report", DueDate: &due}}

	fix.scheduler.NotifyDueSoon(context.Background())
	fix.scheduler.NotifyDueSoon(context.Background())

	require.Len(t, fix.notifier.sent, 1)
	assert.Equal(t, "a", fix.notifier.sent[0].Key)
	assert.Contains(t, fix.notifier.sent[0].Title, "write report")
}

func TestScheduler_NotifyDueSoon_OutsideLeadWindow(t *testing.T) {
	fix := newTestScheduler(t)
	enableNotifications(t, fix.settings, 15)

	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fix.scheduler.now = func() time.Time { return now }

	farOff := now.Add(2 * time.Hour)
	past := now.Add(-1 * time.Minute)
	fix.source.tasks = []task.Task{
		{ID: "far", DueDate: &farOff},
		{ID: "past", DueDate: &past},
		{ID: "none"},
	}

	fix.scheduler.NotifyDueSoon(context.Background())
	assert.Empty(t, fix.notifier.sent)
}

func TestScheduler_NotifyDueSoon_RescheduledTaskNotifiesAgain(t *testing.T) {
	fix := newTestScheduler(t)
	enableNotifications(t, fix.settings, 15)

	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fix.scheduler.now = func() time.Time { return now }

	due := now.Add(5 * time.Minute)
	fix.source.tasks = []task.Task{{ID: "a", Name: "standup", DueDate: &due}}
	fix.scheduler.NotifyDueSoon(context.Background())
	require.Len(t, fix.notifier.sent, 1)

	// Task snoozed past its due time, then comes back due soon again.
	later := now.Add(30 * time.Minute)
	fix.scheduler.now = func() time.Time { return later }
	newDue := later.Add(10 * time.Minute)
	fix.source.tasks = []task.Task{{ID: "a", Name: "standup", DueDate: &newDue}}

	fix.scheduler.NotifyDueSoon(context.Background())
	assert.Len(t, fix.notifier.sent, 2)
}

func TestScheduler_NotifyDueSoon_RescheduledBackToSameInstant(t *testing.T) {
	fix := newTestScheduler(t)
	enableNotifications(t, fix.settings, 15)

	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fix.scheduler.now = func() time.Time { return now }

	due := now.Add(10 * time.Minute)
	fix.source.tasks = []task.Task{{ID: "a", Name: "standup", DueDate: &due}}
	fix.scheduler.NotifyDueSoon(context.Background())
	require.Len(t, fix.notifier.sent, 1)

	// Pushed out of the lead window, then moved back to the identical
	// due instant before it passes. Leaving the due-soon set must clear
	// the dedup entry so the return fires again.
	farOff := now.Add(2 * time.Hour)
	fix.source.tasks = []task.Task{{ID: "a", Name: "standup", DueDate: &farOff}}
	fix.scheduler.now = func() time.Time { return now.Add(2 * time.Minute) }
	fix.scheduler.NotifyDueSoon(context.Background())
	require.Len(t, fix.notifier.sent, 1)

	fix.source.tasks = []task.Task{{ID: "a", Name: "standup", DueDate: &due}}
	fix.scheduler.now = func() time.Time { return now.Add(4 * time.Minute) }
	fix.scheduler.NotifyDueSoon(context.Background())
	assert.Len(t, fix.notifier.sent, 2)
}

func TestScheduler_NotifyDueSoon_Disabled(t *testing.T) {
	fix := newTestScheduler(t)
	// Default settings leave notifications off.
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fix.scheduler.now = func() time.Time { return now }

	due := now.Add(5 * time.Minute)
	fix.source.tasks = []task.Task{{ID: "a", DueDate: &due}}

	fix.scheduler.NotifyDueSoon(context.Background())
	assert.Empty(t, fix.notifier.sent)
}

func TestScheduler_NotifyDueSoon_DeliveryFailureRetriesNextTick(t *testing.T) {
	fix := newTestScheduler(t)
	enableNotifications(t, fix.settings, 15)

	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	fix.scheduler.now = func() time.Time { return now }

	due := now.Add(5 * time.Minute)
	fix.source.tasks = []task.Task{{ID: "a", Name: "standup", DueDate: &due}}

	fix.notifier.err = errors.New("notify-send missing")
	fix.scheduler.NotifyDueSoon(context.Background())
	assert.Empty(t, fix.notifier.sent)

	fix.notifier.err = nil
	fix.scheduler.NotifyDueSoon(context.Background())
	assert.Len(t, fix.notifier.sent, 1)
}
