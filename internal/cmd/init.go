package cmd

import (
	"fmt"

	"github.com/marmos91/burrow/pkg/config"
	"github.com/spf13/cobra"
)

// NewInitCmd creates the init subcommand.
func NewInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a configuration file populated with the built-in defaults.

The file is written to $XDG_CONFIG_HOME/burrow/config.yaml unless --config
is given. An existing file is only replaced with --force.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				written, err := config.InitConfig(force)
				if err != nil {
					return err
				}
				path = written
			} else if err := config.InitConfigToPath(path, force); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite an existing config file")
	cmd.Flags().StringVarP(&path, "config", "c", "", "Path to write the config file")

	return cmd
}
