package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/notedex/notedex/internal/config"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config into the vault",
		Long: `Init creates the vault's data directory with a default config file
that can then be edited. Existing config files are preserved unless
--force is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(vaultFlag)
			if err != nil {
				return err
			}

			path := filepath.Join(config.DataDir(root), config.ConfigFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}

			if err := config.Save(root, config.DefaultConfig()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
