package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayWindow_BoundsAreHalfOpen(t *testing.T) {
	loc := time.FixedZone("TST", 2*60*60)
	now := time.Date(2026, 3, 14, 15, 9, 26, 0, loc)

	w := DayWindow(now)

	midnight := time.Date(2026, 3, 14, 0, 0, 0, 0, loc)
	assert.Equal(t, midnight, w.Start)
	assert.Equal(t, midnight.Add(24*time.Hour), w.End)

	// Due dates 1ms either side of the day boundary
	assert.False(t, w.Contains(midnight.Add(-time.Millisecond)))
	assert.True(t, w.Contains(midnight))
	assert.True(t, w.Contains(midnight.Add(time.Millisecond)))
	assert.True(t, w.Contains(w.End.Add(-time.Millisecond)))
	assert.False(t, w.Contains(w.End))
}

func TestWindow_FilterMillisSimulateInclusiveBounds(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	w := DayWindow(now)

	// A due date exactly at midnight must satisfy due > gt.
	assert.Greater(t, w.Start.UnixMilli(), w.DueAfterMillis())
	assert.Equal(t, w.Start.UnixMilli()-1, w.DueAfterMillis())

	// A due date exactly at the next midnight must not satisfy due < lt.
	assert.Equal(t, w.End.UnixMilli(), w.DueBeforeMillis())
}

func TestSnoozeTarget(t *testing.T) {
	loc := time.FixedZone("TST", -5*60*60)
	now := time.Date(2026, 8, 31, 23, 45, 0, 0, loc)

	for _, days := range []int{1, 2, 7} {
		got := SnoozeTarget(now, days)
		want := time.Date(2026, 8, 31+days, 9, 0, 0, 0, loc)
		assert.Equal(t, want, got, "snooze %d days", days)
	}
}

func TestTask_DueSoon(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	lead := 15 * time.Minute

	due := func(d time.Duration) *time.Time {
		at := now.Add(d)
		return &at
	}

	cases := []struct {
		name string
		due  *time.Time
		want bool
	}{
		{"no due date", nil, false},
		{"already due", due(0), false},
		{"past due", due(-time.Minute), false},
		{"inside lead", due(10 * time.Minute), true},
		{"exactly at lead", due(lead), true},
		{"beyond lead", due(lead + time.Millisecond), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tk := Task{ID: "1", DueDate: tc.due}
			assert.Equal(t, tc.want, tk.DueSoon(now, lead))
		})
	}
}

func TestTask_Overdue(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.True(t, Task{DueDate: &past}.Overdue(now))
	assert.False(t, Task{DueDate: &future}.Overdue(now))
	assert.False(t, Task{}.Overdue(now))
}
