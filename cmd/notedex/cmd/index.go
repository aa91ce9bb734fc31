package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/notedex/notedex/internal/index"
)

func newIndexCmd() *cobra.Command {
	var force bool
	var batchSize int
	var concurrency int

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the vault incrementally",
		Long: `Index scans the vault, detects changed notes by content hash, and
embeds only what changed. Notes whose files are gone are removed from
the index.

Examples:
  notedex index
  notedex index --force
  notedex index --batch-size 64 --concurrency 8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx, vaultFlag)
			if err != nil {
				return err
			}
			defer app.close()

			summary, err := app.manager.IndexAll(ctx, index.Options{
				ForceReindex: force,
				BatchSize:    batchSize,
				Concurrency:  concurrency,
			})
			if err != nil {
				return err
			}

			if err := app.persistVectors(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Indexed:  %d\n", summary.Indexed)
			fmt.Fprintf(out, "Skipped:  %d\n", summary.Skipped)
			fmt.Fprintf(out, "Deleted:  %d\n", summary.Deleted)
			fmt.Fprintf(out, "Errors:   %d\n", summary.Errors)
			if summary.ScanStats.SkippedOversize > 0 {
				fmt.Fprintf(out, "Oversize: %d\n", summary.ScanStats.SkippedOversize)
			}
			fmt.Fprintf(out, "Duration: %s\n", summary.Duration.Round(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Re-embed every note, ignoring content hashes")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Chunks per embedding batch (default from config)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Documents embedded in parallel (default from config)")

	return cmd
}
