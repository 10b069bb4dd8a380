package cmd

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type ProjectSaveOptions struct {
	Overlays []string
}

func NewProjectSaveCommand() *cobra.Command {
	opts := &ProjectSaveOptions{}

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save a new project",
		Example: `  slopify project save reactions --overlay a.mp4@top-left --overlay b.mp4@bottom-right
  slopify project save duo --overlay left.mp4 --overlay right.mp4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectSave(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Overlays, "overlay", []string{}, "Overlay video as path[@slot] (repeatable)")

	return cmd
}

func runProjectSave(cmd *cobra.Command, opts *ProjectSaveOptions, name string) error {
	ids, positions, err := overlayArrangement(opts.Overlays)
	if err != nil {
		return errors.Wrap(err, "invalid overlays")
	}
	p, err := newProjectStore().Save(currentProjectUser(), name, ids, positions)
	if err != nil {
		return errors.Wrap(err, "failed to save project")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Project '%s' saved with ID: %s\n", p.Name, p.ID)
	return nil
}

type ProjectUpdateOptions struct {
	Name     string
	Overlays []string
}

func NewProjectUpdateCommand() *cobra.Command {
	opts := &ProjectUpdateOptions{}

	cmd := &cobra.Command{
		Use:     "update <id>",
		Short:   "Replace the name and overlays of a project",
		Example: `  slopify project update 2d1c1b9e-52e4-4cbd-8f5e-0b6f63f1a7a1 --name trio --overlay a.mp4 --overlay b.mp4 --overlay c.mp4`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectUpdate(cmd, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Name, "name", "", "New project name (default: keep the current name)")
	flags.StringArrayVar(&opts.Overlays, "overlay", []string{}, "Overlay video as path[@slot] (repeatable)")

	return cmd
}

func runProjectUpdate(cmd *cobra.Command, opts *ProjectUpdateOptions, id string) error {
	store := newProjectStore()
	user := currentProjectUser()

	name := opts.Name
	if name == "" {
		p, err := store.Get(user, id)
		if err != nil {
			return errors.Wrap(err, "failed to load project")
		}
		if p != nil {
			name = p.Name
		}
	}

	ids, positions, err := overlayArrangement(opts.Overlays)
	if err != nil {
		return errors.Wrap(err, "invalid overlays")
	}
	if err := store.Update(user, id, name, ids, positions); err != nil {
		return errors.Wrapf(err, "failed to update project %s", id)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Project %s updated\n", id)
	return nil
}
