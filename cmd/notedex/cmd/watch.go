package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/notedex/notedex/internal/index"
	"github.com/notedex/notedex/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the vault and re-index notes as they change",
		Long: `Watch runs an initial incremental index, then follows filesystem
events: edited and created notes are re-indexed, deleted notes are
removed. Stop with Ctrl-C; the vector store is persisted on exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, vaultFlag)
			if err != nil {
				return err
			}
			defer app.close()

			summary, err := app.manager.IndexAll(ctx, index.Options{})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initial index: %d indexed, %d skipped, %d errors.\n",
				summary.Indexed, summary.Skipped, summary.Errors)

			w, err := watcher.NewVaultWatcher(watcher.Options{DebounceWindow: debounce}, app.logger)
			if err != nil {
				return err
			}

			runner := watcher.NewRunner(w, app.manager, app.engine, app.logger)
			go runner.Run(ctx)

			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for changes...\n", app.root)
			err = w.Start(ctx, app.root)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			return app.persistVectors()
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 0, "Event debounce window (default 500ms)")
	return cmd
}
