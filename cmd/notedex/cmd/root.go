// Package cmd provides the CLI commands for notedex.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/notedex/notedex/internal/logging"
	"github.com/notedex/notedex/pkg/version"
)

var (
	vaultFlag string
	debugMode bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the notedex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notedex",
		Short: "Incremental note indexing and hybrid search",
		Long: `Notedex indexes a vault of markdown notes into chunked vector and
keyword representations, and serves semantic, keyword, and hybrid
search over that index.

Indexing is incremental: unchanged notes are detected by content hash
and skipped. Run 'notedex index' in your vault to get started.`,
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("notedex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&vaultFlag, "vault", ".", "Vault root directory")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.notedex/logs/")

	cmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		if !debugMode {
			return nil
		}
		cleanup, err := logging.SetupDefault()
		if err != nil {
			return err
		}
		loggingCleanup = cleanup
		return nil
	}
	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newWatchCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
