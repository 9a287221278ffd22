package cmd

import (
	"github.com/spf13/cobra"
)

var envDir string

var rootCmd = &cobra.Command{
	Use:   "bakery",
	Short: "Order backend for Birchwood Sourdough",
	Long: `Takes customer pickup orders against a daily loaf quota, lets the baker
manage them, and sends confirmations by email or SMS.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute executes the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envDir, "env-dir", ".", "directory containing the .env file")
}
