package cmd

import (
	"github.com/spf13/cobra"

	"github.com/slopify/slopify/packages/cli/config"
	"github.com/slopify/slopify/packages/cli/internal/media/layout"
	"github.com/slopify/slopify/packages/cli/internal/media/studio"
)

var projectUser string

func NewProjectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage saved overlay arrangements",
		Long:  "Save, list, show, update and delete projects. A project stores overlay videos and the position each one is drawn at.",
	}

	cmd.PersistentFlags().StringVar(&projectUser, "user", "", "User the projects belong to (default from config)")

	cmd.AddCommand(
		NewProjectSaveCommand(),
		NewProjectListCommand(),
		NewProjectGetCommand(),
		NewProjectUpdateCommand(),
		NewProjectDeleteCommand(),
	)

	return cmd
}

func currentProjectUser() string {
	if projectUser != "" {
		return projectUser
	}
	return config.GetProjectUser()
}

// overlayArrangement turns --overlay path[@slot] values into the id and
// position lists stored with a project. Stored positions must be visible for
// the overlay count.
func overlayArrangement(values []string) ([]string, []int, error) {
	jobs := make([]JobOverlay, 0, len(values))
	for _, v := range values {
		jobs = append(jobs, parseOverlayFlag(v))
	}
	sources, err := assignOverlays(jobs)
	if err != nil {
		return nil, nil, err
	}
	ids, positions := arrangementOf(sources)
	if _, err := layout.FromProject(ids, positions); err != nil {
		return nil, nil, err
	}
	return ids, positions, nil
}

func arrangementOf(sources []studio.OverlaySource) ([]string, []int) {
	ids := make([]string, 0, len(sources))
	positions := make([]int, 0, len(sources))
	for _, s := range sources {
		ids = append(ids, s.Src)
		positions = append(positions, int(*s.Position))
	}
	return ids, positions
}
