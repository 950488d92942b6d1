package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/harrisonrobin/friday/pkg/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default config to $FRIDAY_HOME/config/friday.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.GetHome()
			if err != nil {
				return err
			}
			path, err := config.GetConfigPath()
			if err != nil {
				return err
			}
			if !force {
				_, err := os.Stat(path)
				if err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
				if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}
			if err := config.Save(config.Default(home)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")
	cmd.AddCommand(initCmd)
	return cmd
}
