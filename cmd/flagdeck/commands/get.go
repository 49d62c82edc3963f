package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagdeck/internal/cli"
	"github.com/TimurManjosov/flagdeck/internal/client"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get a feature flag",
	Long: `Get details of a specific feature flag.

Examples:
  flagdeck get checkout_v2
  flagdeck get checkout_v2 --format json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		envCfg, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		def, err := c.GetFlag(context.Background(), id)
		if err != nil {
			return fmt.Errorf("failed to get flag: %w", err)
		}

		if !quiet {
			return cli.PrintFlag(def, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
