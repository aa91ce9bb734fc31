package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx, vaultFlag)
			if err != nil {
				return err
			}
			defer app.close()

			stats, err := app.manager.Stats(ctx)
			if err != nil {
				return err
			}

			info := app.provider.ModelInfo()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Vault:      %s\n", app.root)
			fmt.Fprintf(out, "Documents:  %d\n", stats.Documents)
			fmt.Fprintf(out, "Vectors:    %d\n", stats.Vectors.TotalVectors)
			fmt.Fprintf(out, "Dimension:  %d\n", stats.Vectors.Dimension)
			fmt.Fprintf(out, "Store:      %s\n", stats.Vectors.Mode)
			fmt.Fprintf(out, "Embedder:   %s (%s)\n", info.Name, info.Kind)
			return nil
		},
	}
}
