// Package timer owns the persisted map of running time trackers and
// the idle-aware elapsed-time computation.
package timer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/colonyops/duetoday/internal/core/kv"
	"github.com/colonyops/duetoday/internal/data/stores"
)

const storageKey = "active_timers"

var (
	// ErrTimerExists is returned by Start when a timer is already
	// running for the task.
	ErrTimerExists = errors.New("timer already running for task")
	// ErrTimerNotFound is returned by Stop and Elapsed when no timer
	// exists for the task.
	ErrTimerNotFound = errors.New("no timer running for task")
)

// Entry is one in-progress tracking session. The task id is the map
// key and is not stored inside the value.
type Entry struct {
	StartTime    time.Time  `json:"start_time"`
	PausedMillis int64      `json:"paused_duration"`
	PausedAt     *time.Time `json:"paused_at,omitempty"`
}

// Running reports whether the entry is currently accruing time.
func (e Entry) Running() bool {
	return e.PausedAt == nil
}

// Elapsed returns the effective elapsed time at now: wall time since
// start net of all pause intervals, clamped to zero.
func (e Entry) Elapsed(now time.Time) time.Duration {
	elapsed := now.Sub(e.StartTime) - time.Duration(e.PausedMillis)*time.Millisecond
	if e.PausedAt != nil {
		elapsed -= now.Sub(*e.PausedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// TimeLogger submits a completed tracking interval to the tracker.
type TimeLogger interface {
	LogTime(ctx context.Context, taskID string, start, end time.Time, duration time.Duration) error
}

// Registry is the in-memory view of the persisted timer map. The popup
// and the daemon run in separate processes against the same bucket, so
// every mutating operation re-reads the persisted map before applying
// its change (last write wins across processes).
type Registry struct {
	mu      sync.Mutex
	bucket  kv.KV
	entries map[string]Entry
	logger  zerolog.Logger
}

// NewRegistry creates a registry over the local bucket and loads any
// timers that survived a restart. A read failure starts empty rather
// than failing; in-flight timers reappear on the next successful read.
func NewRegistry(ctx context.Context, bucket kv.KV, logger zerolog.Logger) *Registry {
	r := &Registry{
		bucket:  bucket,
		entries: map[string]Entry{},
		logger:  logger,
	}
	r.reload(ctx)
	return r
}

// Start begins tracking a task. Fails with ErrTimerExists when a timer
// is already running for it.
func (r *Registry) Start(ctx context.Context, taskID string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reload(ctx)
	if _, exists := r.entries[taskID]; exists {
		return fmt.Errorf("start timer %s: %w", taskID, ErrTimerExists)
	}

	r.entries[taskID] = Entry{StartTime: now}
	r.persist(ctx)
	return nil
}

// Stop ends tracking a task, submits the accrued interval through the
// logger, and removes the entry. The entry is removed even when the
// log submission fails so a timer can never get stuck; the loss is
// logged at warn level and the elapsed time is still returned along
// with the submission error.
func (r *Registry) Stop(ctx context.Context, taskID string, now time.Time, logger TimeLogger) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reload(ctx)
	entry, exists := r.entries[taskID]
	if !exists {
		return 0, fmt.Errorf("stop timer %s: %w", taskID, ErrTimerNotFound)
	}

	elapsed := entry.Elapsed(now)

	var logErr error
	if logger != nil && elapsed > 0 {
		logErr = logger.LogTime(ctx, taskID, entry.StartTime, now, elapsed)
	}

	delete(r.entries, taskID)
	r.persist(ctx)

	if logErr != nil {
		r.logger.Warn().
			Err(logErr).
			Str("task_id", taskID).
			Dur("lost_duration", elapsed).
			Msg("time log submission failed; tracked duration was not recorded")
		return elapsed, fmt.Errorf("log time for %s: %w", taskID, logErr)
	}

	return elapsed, nil
}

// Discard removes a task's entry without logging time. Used when the
// underlying task is completed through a path that already logged.
func (r *Registry) Discard(ctx context.Context, taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reload(ctx)
	if _, exists := r.entries[taskID]; !exists {
		return
	}
	delete(r.entries, taskID)
	r.persist(ctx)
}

// PauseAll marks every running entry paused at now. Pausing an
// already-paused entry is a no-op.
func (r *Registry) PauseAll(ctx context.Context, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reload(ctx)
	changed := false
	for id, entry := range r.entries {
		if entry.PausedAt != nil {
			continue
		}
		at := now
		entry.PausedAt = &at
		r.entries[id] = entry
		changed = true
	}
	if changed {
		r.persist(ctx)
	}
}

// ResumeAll accumulates the finished pause interval into every paused
// entry. Resuming an already-running entry is a no-op.
func (r *Registry) ResumeAll(ctx context.Context, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reload(ctx)
	changed := false
	for id, entry := range r.entries {
		if entry.PausedAt == nil {
			continue
		}
		entry.PausedMillis += now.Sub(*entry.PausedAt).Milliseconds()
		entry.PausedAt = nil
		r.entries[id] = entry
		changed = true
	}
	if changed {
		r.persist(ctx)
	}
}

// Elapsed returns the effective elapsed time for one task.
func (r *Registry) Elapsed(ctx context.Context, taskID string, now time.Time) (time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reload(ctx)
	entry, exists := r.entries[taskID]
	if !exists {
		return 0, fmt.Errorf("elapsed %s: %w", taskID, ErrTimerNotFound)
	}
	return entry.Elapsed(now), nil
}

// Entries returns a copy of the current timer map.
func (r *Registry) Entries(ctx context.Context) map[string]Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reload(ctx)
	out := make(map[string]Entry, len(r.entries))
	for id, entry := range r.entries {
		out[id] = entry
	}
	return out
}

// Recording reports whether any timer is actively accruing time.
func (r *Registry) Recording(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reload(ctx)
	for _, entry := range r.entries {
		if entry.Running() {
			return true
		}
	}
	return false
}

// reload replaces the in-memory map with the persisted one. Read
// failures keep the in-memory state; a missed refresh is preferable to
// dropping live timers. Callers hold r.mu.
func (r *Registry) reload(ctx context.Context) {
	var loaded map[string]Entry
	err := r.bucket.Get(ctx, storageKey, &loaded)
	if stores.IsNotFoundError(err) {
		r.entries = map[string]Entry{}
		return
	}
	if err != nil {
		r.logger.Warn().Err(err).Msg("reload timer map failed; keeping in-memory state")
		return
	}
	r.entries = loaded
}

// persist writes the full map. Write failures are logged and the
// in-memory state stands; the next successful mutation rewrites it.
// Callers hold r.mu.
func (r *Registry) persist(ctx context.Context) {
	if err := r.bucket.Set(ctx, storageKey, r.entries); err != nil {
		r.logger.Warn().Err(err).Msg("persist timer map failed; continuing with in-memory state")
	}
}
