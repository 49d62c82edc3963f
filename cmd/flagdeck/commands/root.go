package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	baseURL string
	apiKey  string
	env     string
	format  string
	quiet   bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagdeck",
	Short: "CLI tool for the flagdeck feature-flag service",
	Long: `Flagdeck is a command-line tool for inspecting and steering the
flagdeck feature-flag service.

It provides commands for listing flags, evaluating them against a context,
and managing operator overrides.

Examples:
  flagdeck list
  flagdeck get checkout_v2
  flagdeck evaluate checkout_v2 --user u-42 --attr country=US
  flagdeck override set checkout_v2 --value false
  flagdeck override clear checkout_v2`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the flagdeck API")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key for authentication")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Named environment from the CLI config file")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
}
