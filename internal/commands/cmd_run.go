package commands

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/duetoday/internal/core/eventbus"
	"github.com/colonyops/duetoday/internal/core/idle"
	"github.com/colonyops/duetoday/internal/core/notify"
	"github.com/colonyops/duetoday/internal/data/stores"
	"github.com/colonyops/duetoday/internal/duetoday"
)

const sweepInterval = time.Hour

type RunCmd struct {
	flags *Flags
}

// NewRunCmd creates a new run command
func NewRunCmd(flags *Flags) *RunCmd {
	return &RunCmd{flags: flags}
}

// Register adds the run command to the application
func (cmd *RunCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run the background daemon",
		UsageText: "duetoday run",
		Description: `Starts the long-running process that keeps the badge current, fires
due-soon notifications, and pauses timers while the machine is idle or
locked. Status bars read the badge with 'duetoday status'.`,
		Action: cmd.run,
	})
	return app
}

func (cmd *RunCmd) run(ctx context.Context, c *cli.Command) error {
	app := cmd.flags.App
	bus := app.Bus

	eventbus.RegisterDebugLogger(bus, log.With().Str("component", "eventbus").Logger())
	go bus.Start(ctx)

	st, err := app.Settings.Load(ctx)
	if err != nil {
		return err
	}

	// Idle monitor: pause/resume timers on host activity transitions.
	monitor := idle.NewMonitor(app.Timers, st.IdleThreshold(), log.With().Str("component", "idle").Logger())
	monitor.OnTransition(func(old, next idle.State) {
		bus.PublishIdleStateChanged(eventbus.IdleStateChangedPayload{Old: old, Next: next})
		bus.PublishBadgeRecomputeRequested(eventbus.BadgeRecomputeRequestedPayload{})
	})
	bus.SubscribeSettingsChanged(func(p eventbus.SettingsChangedPayload) {
		monitor.SetThreshold(p.Settings.IdleThreshold())
		monitor.SetEnabled(ctx, p.Settings.IdleDetectionEnabled(), time.Now())
	})

	// The poll loop always runs when a signal source exists; the
	// enabled gate tracks the idle_detection flag so toggling it at
	// runtime takes effect without a restart.
	monitor.SetEnabled(ctx, st.IdleDetectionEnabled(), time.Now())
	probe := idle.NewHostProbe(app.Executor)
	if probe.Available() {
		go monitor.Run(ctx, probe, cmd.flags.Config.Probe.Interval())
	} else {
		log.Warn().Msg("no idle signal source found (xprintidle/loginctl); timers will not auto-pause")
	}

	// Badge + notification scheduler.
	notifier := notify.NewDesktopNotifier(app.Executor, "duetoday")
	if !notifier.Available() {
		log.Warn().Msg("notify-send not found; due-soon notifications disabled")
	}
	scheduler := duetoday.NewScheduler(
		app.Tasks, app.Timers, app.Settings, app.Badges, notifier, bus,
		log.With().Str("component", "scheduler").Logger(),
	)
	go scheduler.Run(ctx)

	// Cross-process change watcher over the database file.
	watcher := duetoday.NewStoreWatcher(app.DB.Path(), app.Settings, bus, log.Logger)
	if watcher != nil {
		defer func() { _ = watcher.Close() }()
		go watcher.Run(ctx)
	}

	go cmd.sweepLoop(ctx)

	log.Info().Str("db", app.DB.Path()).Msg("daemon started")
	<-ctx.Done()
	log.Info().Msg("daemon stopping")
	return nil
}

// sweepLoop deletes expired KV entries on a slow cadence.
func (cmd *RunCmd) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, bucket := range []string{stores.BucketSynced, stores.BucketLocal} {
				store := stores.NewKVStore(cmd.flags.App.DB, bucket)
				if err := store.SweepExpired(ctx); err != nil {
					log.Warn().Err(err).Str("bucket", bucket).Msg("sweep expired entries failed")
				}
			}
		}
	}
}
