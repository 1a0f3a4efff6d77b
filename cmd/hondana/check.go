package main

import (
	"fmt"

	"github.com/hyperjump/hondana/internal/vector"
	"github.com/hyperjump/hondana/pkg/utils"
	"github.com/spf13/cobra"
)

func NewCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the configured vector store and embedding provider",
		Long: `Connects to the configured vector store and embedding provider and reports
whether they agree on vector length. Exits non-zero when the configured driver
could not be used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			out := cmd.OutOrStdout()
			ctx := cmd.Context()

			fmt.Fprintf(out, "[check] config: %s\n", displayPath(a.configPath))
			fmt.Fprintf(out, "[check] driver: %s (configured %q)\n", a.store.Driver(), a.cfg.VectorDB.Driver)
			st, err := a.store.Status(ctx)
			if err != nil {
				return fmt.Errorf("store status: %w", err)
			}
			fmt.Fprintf(out, "[check] namespace %q holds %d vectors, dimension %d\n", st.Namespace, st.Count, st.Dimension)

			if a.embedder == nil {
				fmt.Fprintf(out, "[check] embedding provider %q unavailable\n", a.cfg.Embedding.Provider)
			} else {
				vec, err := a.embedder.Embed(ctx, "hondana check")
				if err != nil {
					return fmt.Errorf("embedding provider %s: %w", a.cfg.Embedding.Provider, err)
				}
				fmt.Fprintf(out, "[check] embedding provider %s returns %d values (norm %.3f)\n", a.cfg.Embedding.Provider, len(vec), utils.L2Norm(vec))
				if st.Dimension > 0 && st.Dimension != len(vec) {
					fmt.Fprintf(out, "[check] warning: vectors will be resized from %d to %d\n", len(vec), st.Dimension)
				}
			}

			if st.FellBack {
				return fmt.Errorf("%s driver unavailable, fell back to %s", vector.DriverPinecone, st.Driver)
			}
			fmt.Fprintln(out, "[check] OK")
			return nil
		},
	}
}

func displayPath(p string) string {
	if p == "" {
		return "(built-in defaults)"
	}
	return p
}
