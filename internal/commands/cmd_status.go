package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/duetoday/pkg/iojson"
)

type StatusCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewStatusCmd creates a new status command
func NewStatusCmd(flags *Flags) *StatusCmd {
	return &StatusCmd{flags: flags}
}

// Register adds the status command to the application
func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Print the badge computed by the daemon",
		UsageText: "duetoday status [--json]",
		Description: `Prints the badge text the daemon last computed: the count of tasks due
today, or REC while a timer is recording. Empty output means nothing is
due. Intended for status bars (waybar, polybar, tmux).`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output the full badge record as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	b, err := cmd.flags.App.Badges.Get(ctx)
	if err != nil {
		return err
	}

	if cmd.jsonOutput {
		return iojson.WriteLine(c.Root().Writer, b)
	}

	if b.Text != "" {
		fmt.Fprintln(c.Root().Writer, b.Text)
	}
	return nil
}
