package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/duetoday/internal/commands"
	"github.com/colonyops/duetoday/internal/core/badge"
	"github.com/colonyops/duetoday/internal/core/clickup"
	"github.com/colonyops/duetoday/internal/core/config"
	"github.com/colonyops/duetoday/internal/core/eventbus"
	"github.com/colonyops/duetoday/internal/core/settings"
	"github.com/colonyops/duetoday/internal/core/timer"
	"github.com/colonyops/duetoday/internal/data/db"
	"github.com/colonyops/duetoday/internal/data/stores"
	"github.com/colonyops/duetoday/internal/duetoday"
	"github.com/colonyops/duetoday/pkg/executil"
	"github.com/colonyops/duetoday/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, init() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		logCloser func()
		dtApp     = &duetoday.App{}
		database  *db.DB
	)

	flags := &commands.Flags{App: dtApp}

	app := &cli.Command{
		Name:      "duetoday",
		Usage:     "Keep ClickUp tasks due today on your desktop",
		UsageText: "duetoday [global options] command [command options]",
		Description: `Duetoday fetches the ClickUp tasks due today, shows them in a terminal
popup, and runs a background daemon that maintains a status-bar badge,
fires due-soon notifications, and pauses time tracking while the
machine is idle or locked.

Run 'duetoday' with no arguments to open the popup.
Run 'duetoday init' for first-time setup.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("DUETODAY_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file",
				Sources:     cli.EnvVars("DUETODAY_LOG_FILE"),
				Value:       commands.DefaultLogFile(),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("DUETODAY_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("DUETODAY_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger, closer, err := logutils.New(flags.LogLevel, flags.LogFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
				return ctx, fmt.Errorf("create data directory: %w", err)
			}

			database, err = db.Open(cfg.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("open database: %w", err)
			}

			var (
				synced = stores.NewKVStore(database, stores.BucketSynced)
				local  = stores.NewKVStore(database, stores.BucketLocal)
			)

			settingsStore := settings.NewStore(synced)
			timers := timer.NewRegistry(ctx, local, log.With().Str("component", "timer").Logger())
			badges := badge.NewStore(local)
			bus := eventbus.New(64)
			exec := &executil.RealExecutor{}

			// Clients are built per operation so a credential change in
			// another process takes effect without a restart.
			userAgent := fmt.Sprintf("duetoday/%s (%s)", version, duetoday.InstallID(ctx, local))
			apiFactory := func(ctx context.Context) (duetoday.API, error) {
				token, err := settingsStore.Credential(ctx)
				if err != nil {
					return nil, err
				}
				if token == "" {
					return nil, duetoday.ErrNoCredential
				}
				return clickup.New(token, clickup.Options{
					BaseURL:   cfg.API.BaseURL,
					UserAgent: userAgent,
					Timeout:   cfg.API.Timeout(),
				}), nil
			}

			service := duetoday.NewService(
				settingsStore, timers, bus, exec, apiFactory,
				log.With().Str("component", "duetoday").Logger(),
			)

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*dtApp = *duetoday.NewApp(service, timers, settingsStore, badges, bus, cfg, database, exec)

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if database != nil {
				if err := database.Close(); err != nil {
					log.Error().Err(err).Msg("failed to close database")
					return err
				}
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	popupCmd := commands.NewPopupCmd(flags, version)

	app = commands.NewInitCmd(flags).Register(app)
	app = commands.NewRunCmd(flags).Register(app)
	app = commands.NewLsCmd(flags).Register(app)
	app = commands.NewWorkspacesCmd(flags).Register(app)
	app = commands.NewTaskCmd(flags).Register(app)
	app = commands.NewTimerCmd(flags).Register(app)
	app = commands.NewStatusCmd(flags).Register(app)
	app = commands.NewSettingsCmd(flags).Register(app)
	app = popupCmd.Register(app)

	// Open the popup when no subcommand is provided
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'duetoday --help' for usage", c.Args().First())
		}
		return popupCmd.Run(ctx)
	}

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
