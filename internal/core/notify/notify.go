// Package notify delivers user-facing notifications.
package notify

import (
	"context"
	"fmt"

	"github.com/colonyops/duetoday/pkg/executil"
)

// Level represents the urgency of a notification.
type Level string

const (
	LevelInfo     Level = "info"
	LevelCritical Level = "critical"
)

// Notification is a single user notification. Key identifies the
// subject (a task id) so repeat notifications replace rather than
// stack.
type Notification struct {
	Key   string
	Title string
	Body  string
	Level Level
}

// Notifier delivers notifications to the user.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// DesktopNotifier delivers notifications through notify-send.
type DesktopNotifier struct {
	exec    executil.Executor
	appName string
}

// NewDesktopNotifier creates a notifier over the given executor.
func NewDesktopNotifier(exec executil.Executor, appName string) *DesktopNotifier {
	return &DesktopNotifier{exec: exec, appName: appName}
}

// Available reports whether notify-send exists on PATH.
func (d *DesktopNotifier) Available() bool {
	return executil.Available("notify-send")
}

// Notify shows a desktop notification.
func (d *DesktopNotifier) Notify(ctx context.Context, n Notification) error {
	urgency := "normal"
	if n.Level == LevelCritical {
		urgency = "critical"
	}

	args := []string{
		"--app-name", d.appName,
		"--urgency", urgency,
	}
	if n.Key != "" {
		// A stable hint lets the server replace a prior notification
		// for the same task instead of stacking a new one.
		args = append(args, "--hint", "string:x-canonical-private-synchronous:"+n.Key)
	}
	args = append(args, n.Title, n.Body)

	if _, err := d.exec.Run(ctx, "notify-send", args...); err != nil {
		return fmt.Errorf("send notification %q: %w", n.Key, err)
	}
	return nil
}
