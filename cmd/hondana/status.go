package main

import (
	"github.com/hyperjump/hondana/internal/cli"
	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active vector store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, false)
			if err != nil {
				return err
			}
			defer a.Close()
			st, err := a.store.Status(cmd.Context())
			if err != nil {
				return err
			}
			format := cli.OutputText
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				format = cli.OutputJSON
			}
			return cli.WriteStatus(cmd.OutOrStdout(), st, format)
		},
	}
	cmd.Flags().Bool("json", false, "output JSON")
	return cmd
}
