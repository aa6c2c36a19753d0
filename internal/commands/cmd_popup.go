package commands

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/duetoday/internal/data/stores"
	"github.com/colonyops/duetoday/internal/duetoday"
	"github.com/colonyops/duetoday/internal/duetoday/updatecheck"
	"github.com/colonyops/duetoday/internal/tui"
)

type PopupCmd struct {
	flags   *Flags
	version string
}

// NewPopupCmd creates a new popup command
func NewPopupCmd(flags *Flags, version string) *PopupCmd {
	return &PopupCmd{flags: flags, version: version}
}

// Register adds the popup command to the application
func (cmd *PopupCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "popup",
		Usage:     "Open the due-today popup (default action)",
		UsageText: "duetoday [popup]",
		Action: func(ctx context.Context, c *cli.Command) error {
			return cmd.Run(ctx)
		},
	})
	return app
}

// Run opens the popup. Also invoked as the bare 'duetoday' action.
func (cmd *PopupCmd) Run(ctx context.Context) error {
	app := cmd.flags.App

	st, err := app.Settings.Load(ctx)
	if err != nil {
		return err
	}

	cred, err := app.Settings.Credential(ctx)
	if err != nil {
		return err
	}
	if cred == "" {
		return duetoday.ErrNoCredential
	}

	program := tea.NewProgram(tui.New(app, st), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run popup: %w", err)
	}

	cmd.printUpdateNotice(ctx)
	return nil
}

// printUpdateNotice prints a one-line hint when a newer release exists.
// Failures are silent; this must never block the popup path.
func (cmd *PopupCmd) printUpdateNotice(ctx context.Context) {
	local := stores.NewKVStore(cmd.flags.App.DB, stores.BucketLocal)
	result, err := updatecheck.Check(ctx, local, cmd.version)
	if err != nil || result == nil {
		return
	}
	fmt.Printf("duetoday %s is available (running %s)\n", result.Latest, result.Current)
}
