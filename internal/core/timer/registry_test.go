package timer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/duetoday/internal/core/timer"
	"github.com/colonyops/duetoday/internal/data/db"
	"github.com/colonyops/duetoday/internal/data/stores"
)

type fakeLogger struct {
	calls []loggedInterval
	err   error
}

type loggedInterval struct {
	taskID   string
	start    time.Time
	end      time.Time
	duration time.Duration
}

func (f *fakeLogger) LogTime(_ context.Context, taskID string, start, end time.Time, duration time.Duration) error {
	f.calls = append(f.calls, loggedInterval{taskID, start, end, duration})
	return f.err
}

func newTestBucket(t *testing.T) *stores.KVStore {
	t.Helper()
	database, err := db.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return stores.NewKVStore(database, stores.BucketLocal)
}

func newTestRegistry(t *testing.T) *timer.Registry {
	t.Helper()
	return timer.NewRegistry(context.Background(), newTestBucket(t), zerolog.Nop())
}

func TestRegistry_StartTwiceFails(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	now := time.Now()

	require.NoError(t, r.Start(ctx, "t1", now))

	err := r.Start(ctx, "t1", now.Add(time.Minute))
	assert.ErrorIs(t, err, timer.ErrTimerExists)

	// The original entry is untouched.
	elapsed, err := r.Elapsed(ctx, "t1", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, elapsed)
}

func TestRegistry_StopSubmitsAndRemoves(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	stop := start.Add(30 * time.Minute)

	require.NoError(t, r.Start(ctx, "t1", start))

	logger := &fakeLogger{}
	elapsed, err := r.Stop(ctx, "t1", stop, logger)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, elapsed)

	require.Len(t, logger.calls, 1)
	assert.Equal(t, "t1", logger.calls[0].taskID)
	assert.True(t, logger.calls[0].start.Equal(start))
	assert.True(t, logger.calls[0].end.Equal(stop))
	assert.Equal(t, 30*time.Minute, logger.calls[0].duration)

	_, err = r.Elapsed(ctx, "t1", stop)
	assert.ErrorIs(t, err, timer.ErrTimerNotFound)
}

func TestRegistry_StopMissingFails(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Stop(context.Background(), "ghost", time.Now(), &fakeLogger{})
	assert.ErrorIs(t, err, timer.ErrTimerNotFound)
}

func TestRegistry_StopRemovesEntryWhenLogFails(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	start := time.Now().Add(-time.Hour)

	require.NoError(t, r.Start(ctx, "t1", start))

	logger := &fakeLogger{err: errors.New("api down")}
	elapsed, err := r.Stop(ctx, "t1", start.Add(time.Hour), logger)

	// The submission error is surfaced but the timer is gone either way.
	assert.Error(t, err)
	assert.Equal(t, time.Hour, elapsed)
	_, err = r.Elapsed(ctx, "t1", time.Now())
	assert.ErrorIs(t, err, timer.ErrTimerNotFound)
}

func TestRegistry_PauseFreezesElapsed(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	require.NoError(t, r.Start(ctx, "t1", start))
	require.NoError(t, r.Start(ctx, "t2", start.Add(5*time.Minute)))

	// 20 minutes in, the machine goes idle for 5 minutes.
	idleAt := start.Add(20 * time.Minute)
	activeAt := idleAt.Add(5 * time.Minute)
	r.PauseAll(ctx, idleAt)

	// Elapsed is frozen while paused.
	elapsed, err := r.Elapsed(ctx, "t1", idleAt.Add(3*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, elapsed)

	r.ResumeAll(ctx, activeAt)

	// The 5-minute idle window does not count for either timer.
	elapsed, err = r.Elapsed(ctx, "t1", activeAt)
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, elapsed)

	elapsed, err = r.Elapsed(ctx, "t2", activeAt)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, elapsed)

	// Time accrues again after resume.
	elapsed, err = r.Elapsed(ctx, "t1", activeAt.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, elapsed)
}

func TestRegistry_PauseResumeIdempotent(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	start := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	require.NoError(t, r.Start(ctx, "t1", start))

	pauseAt := start.Add(10 * time.Minute)
	r.PauseAll(ctx, pauseAt)
	// Second pause later must not move the pause start.
	r.PauseAll(ctx, pauseAt.Add(2*time.Minute))

	resumeAt := pauseAt.Add(5 * time.Minute)
	r.ResumeAll(ctx, resumeAt)
	// Resuming again is a no-op.
	r.ResumeAll(ctx, resumeAt.Add(time.Minute))

	elapsed, err := r.Elapsed(ctx, "t1", resumeAt)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, elapsed)
}

func TestRegistry_ElapsedClampedToZero(t *testing.T) {
	entry := timer.Entry{StartTime: time.Now().Add(time.Hour)}
	assert.Equal(t, time.Duration(0), entry.Elapsed(time.Now()))
}

func TestRegistry_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	bucket := newTestBucket(t)
	start := time.Now().Add(-10 * time.Minute)

	r1 := timer.NewRegistry(ctx, bucket, zerolog.Nop())
	require.NoError(t, r1.Start(ctx, "t1", start))

	// A fresh registry over the same bucket sees the in-flight timer.
	r2 := timer.NewRegistry(ctx, bucket, zerolog.Nop())
	elapsed, err := r2.Elapsed(ctx, "t1", start.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, elapsed)
}

func TestRegistry_CrossProcessMutationsAreVisible(t *testing.T) {
	ctx := context.Background()
	bucket := newTestBucket(t)
	now := time.Now()

	daemon := timer.NewRegistry(ctx, bucket, zerolog.Nop())
	popup := timer.NewRegistry(ctx, bucket, zerolog.Nop())

	// Popup starts a timer; the daemon's pause still reaches it because
	// mutations re-read the persisted map first.
	require.NoError(t, popup.Start(ctx, "t1", now))
	daemon.PauseAll(ctx, now.Add(time.Minute))

	entries := popup.Entries(ctx)
	require.Contains(t, entries, "t1")
	assert.False(t, entries["t1"].Running())
}

func TestRegistry_Recording(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	now := time.Now()

	assert.False(t, r.Recording(ctx))

	require.NoError(t, r.Start(ctx, "t1", now))
	assert.True(t, r.Recording(ctx))

	r.PauseAll(ctx, now.Add(time.Minute))
	assert.False(t, r.Recording(ctx))
}

func TestRegistry_Discard(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)

	require.NoError(t, r.Start(ctx, "t1", time.Now()))
	r.Discard(ctx, "t1")

	_, err := r.Elapsed(ctx, "t1", time.Now())
	assert.ErrorIs(t, err, timer.ErrTimerNotFound)
}
