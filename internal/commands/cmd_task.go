package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type TaskCmd struct {
	flags *Flags

	// flags
	days int
}

// NewTaskCmd creates a new task command
func NewTaskCmd(flags *Flags) *TaskCmd {
	return &TaskCmd{flags: flags}
}

// Register adds the task command and its subcommands to the application
func (cmd *TaskCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "task",
		Usage:     "Act on a single task",
		UsageText: "duetoday task <complete|snooze|open> <task-id>",
		Commands: []*cli.Command{
			{
				Name:      "complete",
				Usage:     "Mark a task complete (stops its running timer first)",
				UsageText: "duetoday task complete <task-id>",
				Action:    cmd.complete,
			},
			{
				Name:      "snooze",
				Usage:     "Push a task's due date to 09:00 after N days",
				UsageText: "duetoday task snooze <task-id> [--days 1|2|7]",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "days",
						Usage:       "days to push the task (1, 2, or 7)",
						Value:       1,
						Destination: &cmd.days,
					},
				},
				Action: cmd.snooze,
			},
			{
				Name:      "open",
				Usage:     "Open a task in the browser",
				UsageText: "duetoday task open <task-id>",
				Action:    cmd.open,
			},
		},
	})
	return app
}

func (cmd *TaskCmd) taskID(c *cli.Command) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", fmt.Errorf("task id is required")
	}
	return id, nil
}

func (cmd *TaskCmd) complete(ctx context.Context, c *cli.Command) error {
	id, err := cmd.taskID(c)
	if err != nil {
		return err
	}

	if err := cmd.flags.App.Tasks.CompleteTask(ctx, id); err != nil {
		return err
	}

	fmt.Fprintf(c.Root().Writer, "Completed %s\n", id)
	return nil
}

func (cmd *TaskCmd) snooze(ctx context.Context, c *cli.Command) error {
	id, err := cmd.taskID(c)
	if err != nil {
		return err
	}

	target, err := cmd.flags.App.Tasks.SnoozeTask(ctx, id, cmd.days)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.Root().Writer, "Snoozed %s until %s\n", id, target.Format("Mon Jan 2 15:04"))
	return nil
}

func (cmd *TaskCmd) open(ctx context.Context, c *cli.Command) error {
	id, err := cmd.taskID(c)
	if err != nil {
		return err
	}
	return cmd.flags.App.Tasks.OpenTask(ctx, id)
}
