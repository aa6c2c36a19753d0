// Package idle tracks the host's activity state and drives timer
// pause/resume transitions.
package idle

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the host activity state.
type State string

const (
	StateActive State = "active"
	StateIdle   State = "idle"
	StateLocked State = "locked"
)

// Pauser receives pause/resume transitions. Both calls are idempotent
// on the receiving side.
type Pauser interface {
	PauseAll(ctx context.Context, now time.Time)
	ResumeAll(ctx context.Context, now time.Time)
}

// Monitor turns host-reported idle samples into state transitions. It
// never polls the host itself; Run feeds it samples from a Probe on a
// fixed cadence, and tests can call Apply directly.
type Monitor struct {
	pauser Pauser
	logger zerolog.Logger

	mu        sync.Mutex
	state     State
	threshold time.Duration
	enabled   bool
	onChange  []func(old, next State)
}

// NewMonitor creates a monitor in the ACTIVE state (cold-start
// assumption) with the given idle threshold.
func NewMonitor(pauser Pauser, threshold time.Duration, logger zerolog.Logger) *Monitor {
	return &Monitor{
		pauser:    pauser,
		logger:    logger,
		state:     StateActive,
		threshold: threshold,
		enabled:   true,
	}
}

// State returns the current activity state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetThreshold re-arms the detector with a new inactivity threshold.
func (m *Monitor) SetThreshold(threshold time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if threshold > 0 {
		m.threshold = threshold
	}
}

// SetEnabled turns idle detection on or off at runtime. Disabling
// forces the state back to ACTIVE so paused timers are not stranded.
func (m *Monitor) SetEnabled(ctx context.Context, enabled bool, now time.Time) {
	m.mu.Lock()
	m.enabled = enabled
	m.mu.Unlock()
	if !enabled {
		m.Apply(ctx, Sample{}, now)
	}
}

// Enabled reports whether samples are being consumed.
func (m *Monitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// OnTransition registers a callback fired after every state change.
func (m *Monitor) OnTransition(fn func(old, next State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Apply feeds one host sample into the state machine. Entering IDLE or
// LOCKED pauses all timers; returning to ACTIVE resumes them.
func (m *Monitor) Apply(ctx context.Context, sample Sample, now time.Time) {
	m.mu.Lock()
	next := m.classify(sample)
	old := m.state
	if next == old {
		m.mu.Unlock()
		return
	}
	m.state = next
	callbacks := make([]func(State, State), len(m.onChange))
	copy(callbacks, m.onChange)
	m.mu.Unlock()

	m.logger.Debug().
		Str("from", string(old)).
		Str("to", string(next)).
		Msg("idle state changed")

	switch {
	case next == StateActive:
		m.pauser.ResumeAll(ctx, now)
	case old == StateActive:
		m.pauser.PauseAll(ctx, now)
	}
	// IDLE <-> LOCKED moves need no pause action; timers are already paused.

	for _, fn := range callbacks {
		fn(old, next)
	}
}

// Run polls the probe on the given cadence until the context is
// cancelled. Probe failures are logged and leave the state unchanged;
// a missed transition is corrected on the next good sample.
func (m *Monitor) Run(ctx context.Context, probe Probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if !m.Enabled() {
				continue
			}
			sample, err := probe.Sample(ctx)
			if err != nil {
				m.logger.Debug().Err(err).Msg("idle probe failed; state unchanged")
				continue
			}
			m.Apply(ctx, sample, now)
		}
	}
}

// classify maps a sample to a state. Callers hold m.mu.
func (m *Monitor) classify(sample Sample) State {
	switch {
	case sample.Locked:
		return StateLocked
	case sample.Idle >= m.threshold:
		return StateIdle
	default:
		return StateActive
	}
}
