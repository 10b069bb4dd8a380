package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/slopify/slopify/packages/cli/internal/media/layout"
	"github.com/slopify/slopify/packages/cli/internal/project"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

type ProjectGetOptions struct {
	OutputFormat string
}

func NewProjectGetCommand() *cobra.Command {
	opts := &ProjectGetOptions{}

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectGet(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFormat, "output", "o", "text", "Output format (json or text)")
	cmd.RegisterFlagCompletionFunc("output", completeOutputFormat)

	return cmd
}

func runProjectGet(cmd *cobra.Command, opts *ProjectGetOptions, id string) error {
	p, err := newProjectStore().Get(currentProjectUser(), id)
	if err != nil {
		return errors.Wrap(err, "failed to load project")
	}
	if p == nil {
		return project.ErrNotFound
	}

	out := cmd.OutOrStdout()
	if opts.OutputFormat == "json" {
		data, _ := json.MarshalIndent(p, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}

	fmt.Fprintf(out, "ID:      %s\n", p.ID)
	fmt.Fprintf(out, "Name:    %s\n", p.Name)
	fmt.Fprintf(out, "Created: %s\n\n", p.CreatedAt.Local().Format(time.DateTime))

	rows := make([]map[string]interface{}, 0, len(p.OverlayIDs))
	for i, src := range p.OverlayIDs {
		rows = append(rows, map[string]interface{}{
			"position": layout.Position(p.Positions[i]).String(),
			"overlay":  src,
		})
	}
	util.RenderTable(out, []util.TableColumn{
		{Header: "POSITION", Key: "position"},
		{Header: "OVERLAY", Key: "overlay"},
	}, rows)
	return nil
}
