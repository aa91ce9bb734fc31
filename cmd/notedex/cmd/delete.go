package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <path>",
		Short: "Remove a note from the index",
		Long: `Delete removes a note's vectors and indexing record by its
vault-relative path. The file itself is untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx, vaultFlag)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.manager.DeleteOne(ctx, args[0]); err != nil {
				return err
			}
			if err := app.persistVectors(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from the index.\n", args[0])
			return nil
		},
	}
}
