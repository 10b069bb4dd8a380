package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slopify/slopify/packages/cli/internal/version"
)

type VersionOptions struct {
	OutputFormat string
}

func NewVersionCommand() *cobra.Command {
	opts := &VersionOptions{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputFormat, "output", "o", "text", "Output format (json or text)")
	cmd.RegisterFlagCompletionFunc("output", completeOutputFormat)

	return cmd
}

func runVersion(cmd *cobra.Command, opts *VersionOptions) error {
	info := version.ClientInfo()
	out := cmd.OutOrStdout()
	if opts.OutputFormat == "json" {
		data, _ := json.MarshalIndent(info, "", "  ")
		fmt.Fprintln(out, string(data))
		return nil
	}
	fmt.Fprintf(out, "Version:    %s\n", info["Version"])
	fmt.Fprintf(out, "Go version: %s\n", info["GoVersion"])
	fmt.Fprintf(out, "Git commit: %s\n", info["GitCommit"])
	fmt.Fprintf(out, "Built:      %s\n", info["FormattedTime"])
	fmt.Fprintf(out, "OS/Arch:    %s/%s\n", info["OS"], info["Arch"])
	return nil
}

func completeOutputFormat(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"json", "text"}, cobra.ShellCompDirectiveNoFileComp
}
