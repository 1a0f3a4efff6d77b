package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Embed the seed catalogue and replace the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, true)
			if err != nil {
				return err
			}
			defer a.Close()

			seed, _ := cmd.Flags().GetString("seed")
			if seed == "" {
				seed = a.cfg.Reindex.SeedPath
			}
			res, err := a.retriever.Reindex(cmd.Context(), seed)
			if err != nil {
				return fmt.Errorf("reindex: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d books (%d skipped) into %s\n", res.Indexed, res.Skipped, a.store.Driver())
			return nil
		},
	}
	cmd.Flags().String("seed", "", "seed catalogue (JSON array of books); defaults to reindex.seed_path")
	return cmd
}
