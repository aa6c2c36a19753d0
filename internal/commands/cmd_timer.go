package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/duetoday/pkg/iojson"
)

type TimerCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewTimerCmd creates a new timer command
func NewTimerCmd(flags *Flags) *TimerCmd {
	return &TimerCmd{flags: flags}
}

// Register adds the timer command and its subcommands to the application
func (cmd *TimerCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "timer",
		Usage:     "Track time against tasks",
		UsageText: "duetoday timer <start|stop|discard|ls> [task-id]",
		Commands: []*cli.Command{
			{
				Name:      "start",
				Usage:     "Start tracking a task",
				UsageText: "duetoday timer start <task-id>",
				Action:    cmd.start,
			},
			{
				Name:      "stop",
				Usage:     "Stop tracking a task and log the time",
				UsageText: "duetoday timer stop <task-id>",
				Action:    cmd.stop,
			},
			{
				Name:      "discard",
				Usage:     "Drop a timer without logging time",
				UsageText: "duetoday timer discard <task-id>",
				Action:    cmd.discard,
			},
			{
				Name:      "ls",
				Usage:     "List running timers",
				UsageText: "duetoday timer ls [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON lines",
						Destination: &cmd.jsonOutput,
					},
				},
				Action: cmd.ls,
			},
		},
	})
	return app
}

func (cmd *TimerCmd) start(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("task id is required")
	}

	if err := cmd.flags.App.Tasks.StartTimer(ctx, id); err != nil {
		return err
	}

	fmt.Fprintf(c.Root().Writer, "Timer started on %s\n", id)
	return nil
}

func (cmd *TimerCmd) stop(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("task id is required")
	}

	elapsed, err := cmd.flags.App.Tasks.StopTimer(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.Root().Writer, "Logged %s on %s\n", elapsed.Round(time.Second), id)
	return nil
}

func (cmd *TimerCmd) discard(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("task id is required")
	}

	cmd.flags.App.Tasks.DiscardTimer(ctx, id)
	fmt.Fprintf(c.Root().Writer, "Discarded timer on %s\n", id)
	return nil
}

// timerInfo is the JSON output format for duetoday timer ls --json.
type timerInfo struct {
	TaskID  string `json:"task_id"`
	Started string `json:"started"`
	Elapsed string `json:"elapsed"`
	Paused  bool   `json:"paused"`
}

func (cmd *TimerCmd) ls(ctx context.Context, c *cli.Command) error {
	entries := cmd.flags.App.Timers.Entries(ctx)
	out := c.Root().Writer
	now := time.Now()

	if cmd.jsonOutput {
		for id, entry := range entries {
			info := timerInfo{
				TaskID:  id,
				Started: entry.StartTime.Local().Format(time.RFC3339),
				Elapsed: entry.Elapsed(now).Round(time.Second).String(),
				Paused:  !entry.Running(),
			}
			if err := iojson.WriteLine(out, info); err != nil {
				return fmt.Errorf("encode timer: %w", err)
			}
		}
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No running timers")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TASK\tELAPSED\tSTATE")
	for id, entry := range entries {
		state := "recording"
		if !entry.Running() {
			state = "paused"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", id, entry.Elapsed(now).Round(time.Second), state)
	}
	return w.Flush()
}
