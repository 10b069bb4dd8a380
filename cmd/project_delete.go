package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewProjectDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newProjectStore().Delete(currentProjectUser(), args[0]); err != nil {
				return errors.Wrapf(err, "failed to delete project %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %s deleted\n", args[0])
			return nil
		},
	}
}
