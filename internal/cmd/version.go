package cmd

import (
	"fmt"

	"github.com/marmos91/burrow/internal/version"
	"github.com/spf13/cobra"
)

// NewVersionCmd creates the version subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := version.GetInfo()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "burrow version %s\n", version.GetFullVersion())
			fmt.Fprintf(out, "Commit: %s\n", info.Commit)
			fmt.Fprintf(out, "Build Date: %s\n", info.Date)
		},
	}
}
