package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slopify/slopify/packages/cli/internal/util"
	"github.com/slopify/slopify/packages/cli/internal/version"
)

var (
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "slopify",
		Short: "Slopify CLI Tool",
		Long:  `Slopify composes a main video and up to eight overlay videos on a 3x3 grid and renders the result to MP4 or WebM.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			util.InitLogger(verbose)
		},
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flag("version").Changed {
				fmt.Fprintln(cmd.OutOrStdout(), version.Short())
				return nil
			}
			return cmd.Help()
		},
	}
)

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information and exit")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(NewRenderCommand())
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewTranscodeCommand())
	rootCmd.AddCommand(NewLayoutCommand())
	rootCmd.AddCommand(NewProjectCommand())
	rootCmd.AddCommand(NewCheckCommand())
	rootCmd.AddCommand(NewVersionCommand())

	// Enable custom help output ordering
	setupHelpCommand(rootCmd)
}
