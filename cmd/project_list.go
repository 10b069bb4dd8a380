package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/slopify/slopify/packages/cli/internal/project"
	"github.com/slopify/slopify/packages/cli/internal/util"
)

type ProjectListOptions struct {
	OutputFormat string
}

func NewProjectListCommand() *cobra.Command {
	opts := &ProjectListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects, newest first",
		Example: `  slopify project list
  slopify project list --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectList(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFormat, "output", "o", "text", "Output format (json or text)")
	cmd.RegisterFlagCompletionFunc("output", completeOutputFormat)

	return cmd
}

func runProjectList(cmd *cobra.Command, opts *ProjectListOptions) error {
	projects, err := newProjectStore().List(currentProjectUser())
	if err != nil {
		return errors.Wrap(err, "failed to list projects")
	}
	if projects == nil {
		projects = []project.Project{}
	}

	out := cmd.OutOrStdout()
	if opts.OutputFormat == "json" {
		data, _ := json.MarshalIndent(projects, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}

	rows := make([]map[string]interface{}, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, map[string]interface{}{
			"id":       p.ID,
			"name":     p.Name,
			"overlays": len(p.OverlayIDs),
			"created":  p.CreatedAt.Local().Format(time.DateTime),
		})
	}
	util.RenderTable(out, []util.TableColumn{
		{Header: "ID", Key: "id"},
		{Header: "NAME", Key: "name"},
		{Header: "OVERLAYS", Key: "overlays", AlignRight: true},
		{Header: "CREATED", Key: "created"},
	}, rows)
	return nil
}
