package duetoday

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/colonyops/duetoday/internal/core/eventbus"
	"github.com/colonyops/duetoday/internal/core/settings"
)

// StoreWatcher observes the database file for writes made by other
// processes (the popup and one-shot commands share the daemon's
// buckets). After a debounced change it republishes the settings when
// they differ from the last seen record and requests a badge recompute.
type StoreWatcher struct {
	watcher     *fsnotify.Watcher
	dbPath      string
	settings    *settings.Store
	bus         *eventbus.EventBus
	debounceDur time.Duration
	log         zerolog.Logger

	last settings.Settings
}

// NewStoreWatcher creates a watcher over the directory containing the
// database file. Returns nil if fsnotify is unavailable; the daemon
// then relies on the tick cadence alone.
func NewStoreWatcher(dbPath string, st *settings.Store, bus *eventbus.EventBus, log zerolog.Logger) *StoreWatcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn().Err(err).Msg("failed to create fsnotify watcher; cross-process changes detected on tick only")
		return nil
	}

	// Watch the directory, not the file: sqlite WAL writes land in
	// sibling -wal/-shm files and file watches break across renames.
	if err := watcher.Add(filepath.Dir(dbPath)); err != nil {
		log.Warn().Err(err).Str("dir", filepath.Dir(dbPath)).Msg("failed to watch data directory")
		_ = watcher.Close()
		return nil
	}

	return &StoreWatcher{
		watcher:     watcher,
		dbPath:      dbPath,
		settings:    st,
		bus:         bus,
		debounceDur: 500 * time.Millisecond,
		log:         log.With().Str("component", "store-watcher").Logger(),
	}
}

// Run watches until the context is cancelled.
func (w *StoreWatcher) Run(ctx context.Context) {
	if current, err := w.settings.Load(ctx); err == nil {
		w.last = current
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(event) {
				continue
			}

			// Debounce: drain further events until writes settle.
			debounce := time.NewTimer(w.debounceDur)
		debounceLoop:
			for {
				select {
				case <-ctx.Done():
					debounce.Stop()
					return
				case e := <-w.watcher.Events:
					if w.shouldIgnore(e) {
						continue
					}
					if !debounce.Stop() {
						<-debounce.C
					}
					debounce.Reset(w.debounceDur)
				case <-debounce.C:
					break debounceLoop
				}
			}

			w.handleChange(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

// Close stops the watcher.
func (w *StoreWatcher) Close() error {
	return w.watcher.Close()
}

// handleChange reloads the settings and broadcasts what changed.
func (w *StoreWatcher) handleChange(ctx context.Context) {
	w.log.Debug().Msg("database changed on disk")

	current, err := w.settings.Load(ctx)
	if err != nil {
		w.log.Warn().Err(err).Msg("reload settings after change failed")
	} else if !settingsEqual(w.last, current) {
		w.last = current
		w.bus.PublishSettingsChanged(eventbus.SettingsChangedPayload{Settings: current})
	}

	w.bus.PublishBadgeRecomputeRequested(eventbus.BadgeRecomputeRequestedPayload{})
}

// shouldIgnore filters events for unrelated files in the data
// directory (logs, temp files).
func (w *StoreWatcher) shouldIgnore(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return true
	}
	return !strings.HasPrefix(event.Name, w.dbPath)
}

func settingsEqual(a, b settings.Settings) bool {
	if a.NotificationMinutes != b.NotificationMinutes || a.IdleThresholdMinutes != b.IdleThresholdMinutes {
		return false
	}
	if len(a.Features) != len(b.Features) {
		return false
	}
	for f, v := range a.Features {
		if b.Features[f] != v {
			return false
		}
	}
	if len(a.WorkspaceFilter) != len(b.WorkspaceFilter) {
		return false
	}
	for i, id := range a.WorkspaceFilter {
		if b.WorkspaceFilter[i] != id {
			return false
		}
	}
	return true
}
