package commands

import (
	"github.com/spf13/cobra"

	"github.com/cleared-dev/runbal/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "runbal",
		Short:   "Reconstruct running-balance timelines from snapshots and transactions",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newReconstructCommand())

	return rootCmd
}
