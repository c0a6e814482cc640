// Package cmd implements the burrow command line interface.
package cmd

import (
	"github.com/marmos91/burrow/internal/version"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root burrow command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "burrow",
		Short: "burrow - a read-only Gopher server",
		Long: `burrow serves a directory tree over the Gopher protocol.

A client sends one selector line and receives either a menu of the
directory it names or the raw bytes of the file, followed by the
"\r\n.\r\n" terminator.

Use subcommands to perform different operations:
  - serve: Serve a directory tree
  - init: Write a default configuration file
  - version: Print build information`,
		Version:       version.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	groupServer := "server"
	groupUtilities := "utilities"

	rootCmd.AddGroup(&cobra.Group{
		ID:    groupServer,
		Title: "Server Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupUtilities,
		Title: "Utility Commands",
	})

	serveCmd := NewServeCmd()
	initCmd := NewInitCmd()
	versionCmd := NewVersionCmd()

	serveCmd.GroupID = groupServer
	initCmd.GroupID = groupUtilities
	versionCmd.GroupID = groupUtilities

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}
