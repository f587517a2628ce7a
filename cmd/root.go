package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stock-monitor",
	Short: "Stock price fallback monitoring service",
}

func Execute() error {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(migrateCmd)

	return rootCmd.Execute()
}
