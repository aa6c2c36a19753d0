package commands

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/duetoday/pkg/iojson"
)

type WorkspacesCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewWorkspacesCmd creates a new workspaces command
func NewWorkspacesCmd(flags *Flags) *WorkspacesCmd {
	return &WorkspacesCmd{flags: flags}
}

// Register adds the workspaces command to the application
func (cmd *WorkspacesCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "workspaces",
		Usage:     "List workspaces and their spaces",
		UsageText: "duetoday workspaces [--json]",
		Description: `Lists every workspace you belong to with its spaces. Workspace IDs feed
the task filter:

  duetoday settings set workspace_filters on
  duetoday settings set workspace_filter <id>[,<id>...]`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON lines",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})
	return app
}

// spaceInfo and workspaceInfo are the JSON output format for
// duetoday workspaces --json.
type spaceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type workspaceInfo struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Filtered bool        `json:"filtered"`
	Spaces   []spaceInfo `json:"spaces"`
}

func (cmd *WorkspacesCmd) run(ctx context.Context, c *cli.Command) error {
	workspaces, err := cmd.flags.App.Tasks.Workspaces(ctx)
	if err != nil {
		return fmt.Errorf("list workspaces: %w", err)
	}

	st, err := cmd.flags.App.Settings.Load(ctx)
	if err != nil {
		return err
	}

	out := c.Root().Writer

	if cmd.jsonOutput {
		for _, ws := range workspaces {
			info := workspaceInfo{
				ID:       ws.Team.ID,
				Name:     ws.Team.Name,
				Filtered: !st.WorkspaceAllowed(ws.Team.ID),
				Spaces:   make([]spaceInfo, 0, len(ws.Spaces)),
			}
			for _, sp := range ws.Spaces {
				info.Spaces = append(info.Spaces, spaceInfo{ID: sp.ID, Name: sp.Name})
			}
			if err := iojson.WriteLine(out, info); err != nil {
				return fmt.Errorf("encode workspace: %w", err)
			}
		}
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tWORKSPACE\tSPACES\tFETCHED")
	for _, ws := range workspaces {
		names := make([]string, 0, len(ws.Spaces))
		for _, sp := range ws.Spaces {
			names = append(names, sp.Name)
		}
		spaces := "-"
		if len(names) > 0 {
			spaces = strings.Join(names, ", ")
		}
		fetched := "yes"
		if !st.WorkspaceAllowed(ws.Team.ID) {
			fetched = "no"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ws.Team.ID, ws.Team.Name, spaces, fetched)
	}
	return w.Flush()
}
