package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/duetoday/internal/core/settings"
)

type InitCmd struct {
	flags *Flags

	// flags
	force bool
}

// NewInitCmd creates a new init command
func NewInitCmd(flags *Flags) *InitCmd {
	return &InitCmd{flags: flags}
}

// Register adds the init command to the application
func (cmd *InitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "init",
		Usage:     "Set up duetoday with an interactive wizard",
		UsageText: "duetoday init [--force]",
		Description: `First-time setup: stores your ClickUp API token, verifies it against
the API, and picks the features to enable. Settings can be changed
later with 'duetoday settings set'.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "force",
				Aliases:     []string{"f"},
				Usage:       "replace an existing credential",
				Destination: &cmd.force,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *InitCmd) run(ctx context.Context, c *cli.Command) error {
	app := cmd.flags.App
	out := c.Root().Writer

	existing, err := app.Settings.Credential(ctx)
	if err != nil {
		return err
	}

	if existing != "" && !cmd.force {
		var overwrite bool
		err := huh.NewConfirm().
			Title("A credential is already configured").
			Description("Replace it?").
			Value(&overwrite).
			Run()
		if err != nil {
			return err
		}
		if !overwrite {
			fmt.Fprintln(out, "Init cancelled")
			return nil
		}
	}

	var token string
	err = huh.NewInput().
		Title("ClickUp API token").
		Description("Personal token from app.clickup.com → Settings → Apps").
		EchoMode(huh.EchoModePassword).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("token cannot be empty")
			}
			return nil
		}).
		Value(&token).
		Run()
	if err != nil {
		return err
	}

	if err := app.Settings.SetCredential(ctx, strings.TrimSpace(token)); err != nil {
		return err
	}
	app.Tasks.InvalidateIdentity()

	user, err := app.Tasks.VerifyCredential(ctx)
	if err != nil {
		fmt.Fprintf(out, "Warning: token stored but could not be verified: %v\n", err)
	} else {
		fmt.Fprintf(out, "Hello %s, token verified\n", user.Username)
	}

	st, err := app.Settings.Load(ctx)
	if err != nil {
		return err
	}

	updated, err := cmd.promptSettings(st)
	if err != nil {
		return err
	}

	if err := app.Tasks.UpdateSettings(ctx, updated); err != nil {
		return err
	}

	fmt.Fprintln(out, "Setup complete. Start the daemon with 'duetoday run'.")
	return nil
}

// promptSettings collects feature flags and thresholds, seeded from the
// current record.
func (cmd *InitCmd) promptSettings(st settings.Settings) (settings.Settings, error) {
	options := make([]huh.Option[settings.Feature], 0, len(settings.Features))
	for _, f := range settings.Features {
		options = append(options, huh.NewOption(string(f), f).Selected(st.Enabled(f)))
	}

	var enabled []settings.Feature
	notifMinutes := strconv.Itoa(st.NotificationMinutes)
	idleMinutes := strconv.Itoa(st.IdleThresholdMinutes)

	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[settings.Feature]().
			Title("Features").
			Options(options...).
			Value(&enabled),
		huh.NewInput().
			Title("Notification lead (minutes)").
			Validate(validateMinutes).
			Value(&notifMinutes),
		huh.NewInput().
			Title("Idle threshold (minutes)").
			Validate(validateMinutes).
			Value(&idleMinutes),
	))
	if err := form.Run(); err != nil {
		return settings.Settings{}, err
	}

	st.Features = map[settings.Feature]bool{}
	for _, f := range enabled {
		st.Features[f] = true
	}
	st.NotificationMinutes, _ = strconv.Atoi(notifMinutes)
	st.IdleThresholdMinutes, _ = strconv.Atoi(idleMinutes)

	return st, nil
}

func validateMinutes(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fmt.Errorf("enter a whole number of minutes (>= 1)")
	}
	return nil
}
