package idle

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/colonyops/duetoday/pkg/executil"
)

// Sample is one host-reported activity reading.
type Sample struct {
	Idle   time.Duration
	Locked bool
}

// Probe reports the host's idle signal.
type Probe interface {
	Sample(ctx context.Context) (Sample, error)
}

// HostProbe reads the idle time from xprintidle and the session lock
// state from loginctl. Either tool missing degrades to the signal the
// other provides.
type HostProbe struct {
	exec executil.Executor
}

// NewHostProbe creates a probe over the given executor.
func NewHostProbe(exec executil.Executor) *HostProbe {
	return &HostProbe{exec: exec}
}

// Available reports whether at least one idle signal source exists.
func (p *HostProbe) Available() bool {
	return executil.Available("xprintidle") || executil.Available("loginctl")
}

// Sample reads the current idle duration and lock state. A failing
// xprintidle leaves Idle at zero and the lock state still counts; only
// when both tools fail does Sample return an error.
func (p *HostProbe) Sample(ctx context.Context) (Sample, error) {
	var sample Sample

	out, idleErr := p.exec.Run(ctx, "xprintidle")
	if idleErr == nil {
		ms, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
		if err != nil {
			idleErr = fmt.Errorf("parse idle time %q: %w", strings.TrimSpace(string(out)), err)
		} else {
			sample.Idle = time.Duration(ms) * time.Millisecond
		}
	}

	out, lockErr := p.exec.Run(ctx, "loginctl", "show-session", "self", "--property", "LockedHint", "--value")
	if lockErr == nil {
		sample.Locked = strings.TrimSpace(string(out)) == "yes"
	}

	if idleErr != nil && lockErr != nil {
		return Sample{}, fmt.Errorf("read idle signals: %w", idleErr)
	}
	return sample, nil
}
