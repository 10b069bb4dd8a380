package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

// Priority order for top-level commands
var commandPriority = []string{"render", "validate", "transcode", "layout", "project", "check", "version", "completion", "help"}

// Setup help command
func setupHelpCommand(rootCmd *cobra.Command) {
	defaultHelp := rootCmd.HelpFunc()
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != cmd.Root() {
			defaultHelp(cmd, args)
			return
		}
		printRootHelpOrdered(cmd.OutOrStdout(), cmd)
	})
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:   "help [command]",
		Short: "Show help information",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _, err := cmd.Root().Find(args)
			if len(args) == 0 || err != nil || target == nil {
				printRootHelpOrdered(cmd.OutOrStdout(), cmd.Root())
				return nil
			}
			return target.Help()
		},
	})
}

// printRootHelpOrdered prints the root help with commands ordered by commandPriority
func printRootHelpOrdered(w io.Writer, cmd *cobra.Command) {
	priorityIndex := map[string]int{}
	for i, name := range commandPriority {
		priorityIndex[name] = i
	}

	if cmd.Long != "" {
		fmt.Fprintln(w, cmd.Long)
	} else if cmd.Short != "" {
		fmt.Fprintln(w, cmd.Short)
	}

	fmt.Fprintln(w, "\nUsage:")
	fmt.Fprintf(w, "  %s [flags]\n", cmd.Name())
	fmt.Fprintf(w, "  %s [command]\n", cmd.Name())

	commands := []*cobra.Command{}
	for _, c := range cmd.Commands() {
		if !c.IsAvailableCommand() || c.Hidden {
			continue
		}
		commands = append(commands, c)
	}

	// Custom sort by priority, then by name
	sort.SliceStable(commands, func(i, j int) bool {
		ci, cj := commands[i], commands[j]
		pi, okI := priorityIndex[ci.Name()]
		pj, okJ := priorityIndex[cj.Name()]
		if okI && okJ {
			return pi < pj
		}
		if okI != okJ {
			return okI
		}
		return ci.Name() < cj.Name()
	})

	fmt.Fprintln(w, "\nAvailable Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-14s %s\n", c.Name(), c.Short)
	}

	fmt.Fprintln(w, "\nFlags:")
	fmt.Fprint(w, cmd.Flags().FlagUsages())
	if cmd.PersistentFlags().HasAvailableFlags() {
		fmt.Fprint(w, cmd.PersistentFlags().FlagUsages())
	}

	fmt.Fprintf(w, "\nUse \"%s [command] --help\" for more information about a command.\n", cmd.Name())
}
