package idle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colonyops/duetoday/pkg/executil"
)

type fakePauser struct {
	pauses  []time.Time
	resumes []time.Time
}

func (f *fakePauser) PauseAll(_ context.Context, now time.Time)  { f.pauses = append(f.pauses, now) }
func (f *fakePauser) ResumeAll(_ context.Context, now time.Time) { f.resumes = append(f.resumes, now) }

func TestMonitor_StartsActive(t *testing.T) {
	m := NewMonitor(&fakePauser{}, 5*time.Minute, zerolog.Nop())
	assert.Equal(t, StateActive, m.State())
}

func TestMonitor_IdleTransitionPausesOnce(t *testing.T) {
	ctx := context.Background()
	pauser := &fakePauser{}
	m := NewMonitor(pauser, 5*time.Minute, zerolog.Nop())
	now := time.Now()

	m.Apply(ctx, Sample{Idle: 6 * time.Minute}, now)
	assert.Equal(t, StateIdle, m.State())
	assert.Len(t, pauser.pauses, 1)

	// Staying idle is not a transition.
	m.Apply(ctx, Sample{Idle: 7 * time.Minute}, now.Add(time.Minute))
	assert.Len(t, pauser.pauses, 1)
	assert.Empty(t, pauser.resumes)
}

func TestMonitor_ActiveTransitionResumes(t *testing.T) {
	ctx := context.Background()
	pauser := &fakePauser{}
	m := NewMonitor(pauser, 5*time.Minute, zerolog.Nop())
	now := time.Now()

	m.Apply(ctx, Sample{Idle: 10 * time.Minute}, now)
	m.Apply(ctx, Sample{Idle: time.Second}, now.Add(5*time.Minute))

	assert.Equal(t, StateActive, m.State())
	require.Len(t, pauser.resumes, 1)
	assert.Equal(t, now.Add(5*time.Minute), pauser.resumes[0])
}

func TestMonitor_LockedBeatsIdle(t *testing.T) {
	ctx := context.Background()
	pauser := &fakePauser{}
	m := NewMonitor(pauser, 5*time.Minute, zerolog.Nop())
	now := time.Now()

	m.Apply(ctx, Sample{Idle: time.Second, Locked: true}, now)
	assert.Equal(t, StateLocked, m.State())
	assert.Len(t, pauser.pauses, 1)

	// LOCKED -> IDLE keeps timers paused; no extra pause call.
	m.Apply(ctx, Sample{Idle: 10 * time.Minute}, now.Add(time.Minute))
	assert.Equal(t, StateIdle, m.State())
	assert.Len(t, pauser.pauses, 1)
	assert.Empty(t, pauser.resumes)
}

func TestMonitor_SetThresholdRearms(t *testing.T) {
	ctx := context.Background()
	pauser := &fakePauser{}
	m := NewMonitor(pauser, 5*time.Minute, zerolog.Nop())

	m.Apply(ctx, Sample{Idle: 2 * time.Minute}, time.Now())
	assert.Equal(t, StateActive, m.State())

	m.SetThreshold(time.Minute)
	m.Apply(ctx, Sample{Idle: 2 * time.Minute}, time.Now())
	assert.Equal(t, StateIdle, m.State())
}

func TestMonitor_DisableForcesActive(t *testing.T) {
	ctx := context.Background()
	pauser := &fakePauser{}
	m := NewMonitor(pauser, 5*time.Minute, zerolog.Nop())
	now := time.Now()

	m.Apply(ctx, Sample{Locked: true}, now)
	require.Len(t, pauser.pauses, 1)

	// Turning idle detection off mid-lock must not strand paused timers.
	m.SetEnabled(ctx, false, now.Add(time.Minute))
	assert.False(t, m.Enabled())
	assert.Equal(t, StateActive, m.State())
	require.Len(t, pauser.resumes, 1)
	assert.Equal(t, now.Add(time.Minute), pauser.resumes[0])

	m.SetEnabled(ctx, true, now.Add(2*time.Minute))
	assert.True(t, m.Enabled())
}

func TestMonitor_OnTransition(t *testing.T) {
	ctx := context.Background()
	m := NewMonitor(&fakePauser{}, 5*time.Minute, zerolog.Nop())

	var transitions [][2]State
	m.OnTransition(func(old, next State) {
		transitions = append(transitions, [2]State{old, next})
	})

	m.Apply(ctx, Sample{Idle: 10 * time.Minute}, time.Now())
	m.Apply(ctx, Sample{}, time.Now())

	require.Len(t, transitions, 2)
	assert.Equal(t, [2]State{StateActive, StateIdle}, transitions[0])
	assert.Equal(t, [2]State{StateIdle, StateActive}, transitions[1])
}

func TestHostProbe_Sample(t *testing.T) {
	exec := &executil.RecordingExecutor{
		Outputs: map[string][]byte{
			"xprintidle": []byte("90000\n"),
			"loginctl":   []byte("yes\n"),
		},
	}

	probe := NewHostProbe(exec)
	sample, err := probe.Sample(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, sample.Idle)
	assert.True(t, sample.Locked)
}

func TestHostProbe_BothSourcesFailing(t *testing.T) {
	exec := &executil.RecordingExecutor{
		Errors: map[string]error{
			"xprintidle": errors.New("no display"),
			"loginctl":   errors.New("no session"),
		},
	}

	_, err := NewHostProbe(exec).Sample(context.Background())
	assert.ErrorContains(t, err, "read idle signals")
}

func TestHostProbe_LockOnlyHost(t *testing.T) {
	// Wayland and headless X hosts have no xprintidle; the lock state
	// from loginctl must still drive pausing.
	exec := &executil.RecordingExecutor{
		Errors:  map[string]error{"xprintidle": errors.New("no display")},
		Outputs: map[string][]byte{"loginctl": []byte("yes\n")},
	}

	sample, err := NewHostProbe(exec).Sample(context.Background())
	require.NoError(t, err)
	assert.True(t, sample.Locked)
	assert.Zero(t, sample.Idle)
}

func TestHostProbe_LockStateBestEffort(t *testing.T) {
	exec := &executil.RecordingExecutor{
		Outputs: map[string][]byte{"xprintidle": []byte("100")},
		Errors:  map[string]error{"loginctl": errors.New("no session")},
	}

	sample, err := NewHostProbe(exec).Sample(context.Background())
	require.NoError(t, err)
	assert.False(t, sample.Locked)
	assert.Equal(t, 100*time.Millisecond, sample.Idle)
}
