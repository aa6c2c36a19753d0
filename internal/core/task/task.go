// Package task defines the task model and the due-date arithmetic used
// by the badge scheduler, the notifier, and the popup.
package task

import "time"

// Task is a single task as surfaced by the tracker.
type Task struct {
	ID           string
	Name         string
	Status       string
	ListID       string
	ListName     string
	URL          string
	TeamID       string
	DueDate      *time.Time
	TimeEstimate time.Duration
	TimeSpent    time.Duration
	Closed       bool
}

// HasDueTime reports whether the task carries a due instant.
func (t Task) HasDueTime() bool {
	return t.DueDate != nil
}

// Window is a half-open time interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow returns the due-today window for the day containing now,
// computed against now's location: [local midnight, local midnight + 24h).
func DayWindow(now time.Time) Window {
	year, month, day := now.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	return Window{Start: start, End: start.Add(24 * time.Hour)}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// DueAfterMillis returns the exclusive lower bound for the tracker's
// due_date_gt filter, adjusted by -1ms so Start itself is included.
func (w Window) DueAfterMillis() int64 {
	return w.Start.UnixMilli() - 1
}

// DueBeforeMillis returns the exclusive upper bound for the tracker's
// due_date_lt filter. End is already exclusive, so no adjustment.
func (w Window) DueBeforeMillis() int64 {
	return w.End.UnixMilli()
}

// SnoozeTarget returns the rescheduled due instant for a snooze of the
// given number of days: 09:00 local time on (today + days).
func SnoozeTarget(now time.Time, days int) time.Time {
	year, month, day := now.Date()
	return time.Date(year, month, day+days, 9, 0, 0, 0, now.Location())
}

// DueSoon reports whether the task's due time is strictly within
// (0, lead] from now. Tasks without a due time are never due soon.
func (t Task) DueSoon(now time.Time, lead time.Duration) bool {
	if t.DueDate == nil {
		return false
	}
	until := t.DueDate.Sub(now)
	return until > 0 && until <= lead
}

// Overdue reports whether the task's due time has already passed.
func (t Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now)
}
