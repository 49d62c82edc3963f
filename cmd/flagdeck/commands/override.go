package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagdeck/internal/cli"
	"github.com/TimurManjosov/flagdeck/internal/client"
)

var (
	overrideValue   string
	overrideVariant string
	overrideTTL     time.Duration
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manage operator overrides",
}

var overrideSetCmd = &cobra.Command{
	Use:   "set <id>",
	Short: "Set an override for a flag",
	Long: `Set an override that bypasses all conditional logic for a flag.
The value is parsed as JSON; unquoted strings are taken literally.

Examples:
  flagdeck override set checkout_v2 --value false
  flagdeck override set banner_text --value '"Black Friday"' --ttl 2h
  flagdeck override set theme --value '"dark"' --variant dark`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		var value any
		if err := json.Unmarshal([]byte(overrideValue), &value); err != nil {
			// Not valid JSON: treat as a plain string value.
			value = overrideValue
		}

		var expiresAt *time.Time
		if overrideTTL > 0 {
			t := time.Now().UTC().Add(overrideTTL)
			expiresAt = &t
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		if err := c.SetOverride(context.Background(), args[0], value, overrideVariant, expiresAt); err != nil {
			return fmt.Errorf("failed to set override: %w", err)
		}
		if !quiet {
			fmt.Printf("Override set for %s\n", args[0])
		}
		return nil
	},
}

var overrideClearCmd = &cobra.Command{
	Use:   "clear [id]",
	Short: "Clear one override, or all when no id is given",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		if len(args) == 1 {
			if err := c.RemoveOverride(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to clear override: %w", err)
			}
		} else {
			if err := c.ClearOverrides(context.Background()); err != nil {
				return fmt.Errorf("failed to clear overrides: %w", err)
			}
		}
		if !quiet {
			fmt.Println("Override(s) cleared")
		}
		return nil
	},
}

func init() {
	overrideSetCmd.Flags().StringVar(&overrideValue, "value", "", "Override value (JSON)")
	overrideSetCmd.Flags().StringVar(&overrideVariant, "variant", "", "Advisory variant id to attach")
	overrideSetCmd.Flags().DurationVar(&overrideTTL, "ttl", 0, "Override lifetime (e.g. 30m, 2h); 0 means no expiry")
	_ = overrideSetCmd.MarkFlagRequired("value")

	overrideCmd.AddCommand(overrideSetCmd, overrideClearCmd)
	rootCmd.AddCommand(overrideCmd)
}
