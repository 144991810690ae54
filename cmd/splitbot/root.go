package main

import (
	"github.com/spf13/cobra"

	"github.com/susu3304/splitbot/internal/buildinfo"
)

// newRootCommand creates the root CLI command with all subcommands registered.
func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "splitbot",
		Short:   "Settle shared expenses with the fewest transfers",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newSolveCommand())

	return rootCmd
}
