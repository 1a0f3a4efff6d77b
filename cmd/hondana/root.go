package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "hondana",
		Short:         "Semantic book search over a local or Pinecone vector store",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml, then "+defaultConfigPath+")")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(
		NewInitCmd(),
		NewServeCmd(),
		NewReindexCmd(),
		NewSearchCmd(),
		NewDeleteCmd(),
		NewStatusCmd(),
		NewCheckCmd(),
	)
	return rootCmd
}
