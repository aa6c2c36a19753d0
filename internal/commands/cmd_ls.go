package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/duetoday/internal/core/task"
	"github.com/colonyops/duetoday/pkg/iojson"
)

type LsCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
	overdue    bool
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags) *LsCmd {
	return &LsCmd{flags: flags}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List tasks due today",
		UsageText: "duetoday ls [--json] [--overdue]",
		Description: `Displays a table of open tasks due today with their list, due time,
and tracked time.

Use --json for line-oriented output suitable for scripts and jq.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
			&cli.BoolFlag{
				Name:        "overdue",
				Usage:       "include overdue tasks from previous days",
				Destination: &cmd.overdue,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	tasks, err := cmd.flags.App.Tasks.DueTasks(ctx, cmd.overdue)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	out := c.Root().Writer
	entries := cmd.flags.App.Timers.Entries(ctx)
	now := time.Now()

	if cmd.jsonOutput {
		for _, t := range tasks {
			_, tracking := entries[t.ID]
			if err := iojson.WriteLine(out, buildTaskInfo(t, now, tracking)); err != nil {
				return fmt.Errorf("encode task: %w", err)
			}
		}
		return nil
	}

	if len(tasks) == 0 {
		fmt.Fprintf(os.Stderr, "Nothing due today\n")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tLIST\tDUE\tTIMER")

	for _, t := range tasks {
		due := "-"
		if t.HasDueTime() {
			due = t.DueDate.Local().Format("15:04")
			if t.Overdue(now) {
				due += " (overdue)"
			}
		}

		state := "-"
		if entry, ok := entries[t.ID]; ok {
			if entry.Running() {
				state = "recording"
			} else {
				state = "paused"
			}
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.ListName, due, state)
	}

	return w.Flush()
}

// taskInfo is the JSON output format for duetoday ls --json.
type taskInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	List     string `json:"list"`
	URL      string `json:"url"`
	DueDate  string `json:"due_date,omitempty"`
	Overdue  bool   `json:"overdue"`
	Tracking bool   `json:"tracking"`
}

func buildTaskInfo(t task.Task, now time.Time, tracking bool) taskInfo {
	info := taskInfo{
		ID:       t.ID,
		Name:     t.Name,
		List:     t.ListName,
		URL:      t.URL,
		Overdue:  t.Overdue(now),
		Tracking: tracking,
	}
	if t.HasDueTime() {
		info.DueDate = t.DueDate.Local().Format(time.RFC3339)
	}
	return info
}
