// Package settings holds the runtime settings record shared by the
// daemon and the CLI surfaces, persisted in the synced bucket.
package settings

import (
	"fmt"
	"time"
)

// Feature names a toggleable behavior. All features are independent.
type Feature string

const (
	FeatureShowOverdue        Feature = "show_overdue"
	FeatureShowDueTime        Feature = "show_due_time"
	FeatureShowTimeTracked    Feature = "show_time_tracked"
	FeatureShowCompletedToday Feature = "show_completed_today"
	FeatureGroupByList        Feature = "group_by_list"
	FeatureBadgeCount         Feature = "badge_count"
	FeatureTimeTracking       Feature = "time_tracking"
	FeatureSnooze             Feature = "snooze"
	FeatureWorkspaceFilters   Feature = "workspace_filters"
	FeatureNotifications      Feature = "notifications"
	FeatureIdleDetection      Feature = "idle_detection"
)

// Features lists every known feature, sorted for stable CLI output.
var Features = []Feature{
	FeatureBadgeCount,
	FeatureGroupByList,
	FeatureIdleDetection,
	FeatureNotifications,
	FeatureShowCompletedToday,
	FeatureShowDueTime,
	FeatureShowOverdue,
	FeatureShowTimeTracked,
	FeatureSnooze,
	FeatureTimeTracking,
	FeatureWorkspaceFilters,
}

// Settings is the persisted settings record.
type Settings struct {
	Features             map[Feature]bool `json:"features"`
	NotificationMinutes  int              `json:"notification_minutes"`
	IdleThresholdMinutes int              `json:"idle_threshold_minutes"`

	// WorkspaceFilter lists the workspace IDs tasks are fetched from
	// when the workspace_filters feature is on. Empty means all.
	WorkspaceFilter []string `json:"workspace_filter,omitempty"`
}

// Default returns the settings applied on first run.
func Default() Settings {
	return Settings{
		Features: map[Feature]bool{
			FeatureBadgeCount:    true,
			FeatureShowDueTime:   true,
			FeatureTimeTracking:  true,
			FeatureSnooze:        true,
			FeatureIdleDetection: true,
		},
		NotificationMinutes:  15,
		IdleThresholdMinutes: 5,
	}
}

// Enabled reports whether a feature is on. Unknown or unset features
// are off.
func (s Settings) Enabled(f Feature) bool {
	return s.Features[f]
}

// NotificationsEnabled reports whether due-soon notifications should
// fire: the flag must be on and the lead time at least one minute.
func (s Settings) NotificationsEnabled() bool {
	return s.Enabled(FeatureNotifications) && s.NotificationMinutes >= 1
}

// IdleDetectionEnabled reports whether idle-aware timer pausing is on:
// the flag must be on and the threshold at least one minute.
func (s Settings) IdleDetectionEnabled() bool {
	return s.Enabled(FeatureIdleDetection) && s.IdleThresholdMinutes >= 1
}

// WorkspaceAllowed reports whether tasks from the given workspace are
// included. The feature being off, or an empty filter, allows all.
func (s Settings) WorkspaceAllowed(teamID string) bool {
	if !s.Enabled(FeatureWorkspaceFilters) || len(s.WorkspaceFilter) == 0 {
		return true
	}
	for _, id := range s.WorkspaceFilter {
		if id == teamID {
			return true
		}
	}
	return false
}

// NotificationLead returns the lead time before due instants at which
// notifications fire.
func (s Settings) NotificationLead() time.Duration {
	return time.Duration(s.NotificationMinutes) * time.Minute
}

// IdleThreshold returns the inactivity duration before idle is declared.
func (s Settings) IdleThreshold() time.Duration {
	return time.Duration(s.IdleThresholdMinutes) * time.Minute
}

// Validate checks the record's numeric bounds and feature names.
func (s Settings) Validate() error {
	if s.NotificationMinutes < 1 {
		return fmt.Errorf("notification_minutes must be >= 1, got %d", s.NotificationMinutes)
	}
	if s.IdleThresholdMinutes < 1 {
		return fmt.Errorf("idle_threshold_minutes must be >= 1, got %d", s.IdleThresholdMinutes)
	}
	for f := range s.Features {
		if !isKnownFeature(f) {
			return fmt.Errorf("unknown feature %q", f)
		}
	}
	return nil
}

func isKnownFeature(f Feature) bool {
	for _, known := range Features {
		if f == known {
			return true
		}
	}
	return false
}
