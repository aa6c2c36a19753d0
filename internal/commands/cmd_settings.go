package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/duetoday/internal/core/settings"
	"github.com/colonyops/duetoday/pkg/iojson"
)

type SettingsCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewSettingsCmd creates a new settings command
func NewSettingsCmd(flags *Flags) *SettingsCmd {
	return &SettingsCmd{flags: flags}
}

// Register adds the settings command and its subcommands to the application
func (cmd *SettingsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "settings",
		Usage:     "Show or change runtime settings",
		UsageText: "duetoday settings <get|set>",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show the current settings",
				UsageText: "duetoday settings get [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "json",
						Usage:       "output as JSON",
						Destination: &cmd.jsonOutput,
					},
				},
				Action: cmd.get,
			},
			{
				Name:      "set",
				Usage:     "Change a setting",
				UsageText: "duetoday settings set <key> <value>",
				Description: `Keys are the feature names shown by 'settings get' (values: on/off)
plus:

  notification_minutes    minutes before a due time to notify (>= 1)
  idle_threshold_minutes  minutes of inactivity before timers pause (>= 1)
  workspace_filter        comma-separated workspace IDs to fetch from
                          ('all' clears; see 'duetoday workspaces')`,
				Action: cmd.set,
			},
		},
	})
	return app
}

func (cmd *SettingsCmd) get(ctx context.Context, c *cli.Command) error {
	st, err := cmd.flags.App.Settings.Load(ctx)
	if err != nil {
		return err
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		return iojson.WriteLine(out, st)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, f := range settings.Features {
		state := "off"
		if st.Enabled(f) {
			state = "on"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", f, state)
	}
	_, _ = fmt.Fprintf(w, "notification_minutes\t%d\n", st.NotificationMinutes)
	_, _ = fmt.Fprintf(w, "idle_threshold_minutes\t%d\n", st.IdleThresholdMinutes)
	filter := "all"
	if len(st.WorkspaceFilter) > 0 {
		filter = strings.Join(st.WorkspaceFilter, ",")
	}
	_, _ = fmt.Fprintf(w, "workspace_filter\t%s\n", filter)
	return w.Flush()
}

func (cmd *SettingsCmd) set(ctx context.Context, c *cli.Command) error {
	key := c.Args().Get(0)
	value := c.Args().Get(1)
	if key == "" || value == "" {
		return fmt.Errorf("usage: duetoday settings set <key> <value>")
	}

	st, err := cmd.flags.App.Settings.Load(ctx)
	if err != nil {
		return err
	}

	switch key {
	case "notification_minutes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("notification_minutes: %q is not a number", value)
		}
		st.NotificationMinutes = n

	case "idle_threshold_minutes":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("idle_threshold_minutes: %q is not a number", value)
		}
		st.IdleThresholdMinutes = n

	case "workspace_filter":
		st.WorkspaceFilter = parseWorkspaceFilter(value)

	default:
		enabled, err := parseOnOff(value)
		if err != nil {
			return err
		}
		if st.Features == nil {
			st.Features = map[settings.Feature]bool{}
		}
		st.Features[settings.Feature(key)] = enabled
	}

	if err := cmd.flags.App.Tasks.UpdateSettings(ctx, st); err != nil {
		return err
	}

	fmt.Fprintf(c.Root().Writer, "%s = %s\n", key, value)
	return nil
}

// parseWorkspaceFilter splits a comma-separated ID list; "all" or an
// empty list clears the filter.
func parseWorkspaceFilter(value string) []string {
	if value == "all" {
		return nil
	}
	var ids []string
	for _, id := range strings.Split(value, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func parseOnOff(value string) (bool, error) {
	switch value {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("value %q must be on or off", value)
	}
}
