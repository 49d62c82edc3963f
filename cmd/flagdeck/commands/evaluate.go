package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/flagdeck/internal/cli"
	"github.com/TimurManjosov/flagdeck/internal/client"
	"github.com/TimurManjosov/flagdeck/internal/flags"
)

var (
	evalUserID    string
	evalSessionID string
	evalSegment   string
	evalAttrs     []string
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [id...]",
	Short: "Evaluate flags against a context",
	Long: `Evaluate one or more flags (all flags when no ids are given) for the
given evaluation context.

Examples:
  flagdeck evaluate --user u-42
  flagdeck evaluate checkout_v2 --user u-42 --attr country=US --attr plan=premium
  flagdeck evaluate --session s-7 --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		envCfg, err := cli.GetEnvConfig(env, baseURL, apiKey)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		ectx := flags.Context{
			UserID:      evalUserID,
			SessionID:   evalSessionID,
			UserSegment: evalSegment,
		}
		if len(evalAttrs) > 0 {
			ectx.Attributes = make(map[string]any, len(evalAttrs))
			for _, pair := range evalAttrs {
				key, value, found := strings.Cut(pair, "=")
				if !found || key == "" {
					return fmt.Errorf("invalid attribute %q, expected key=value", pair)
				}
				ectx.Attributes[key] = value
			}
		}

		c := client.NewClient(envCfg.BaseURL, envCfg.APIKey)
		results, err := c.Evaluate(context.Background(), &ectx, args)
		if err != nil {
			return fmt.Errorf("failed to evaluate: %w", err)
		}

		if !quiet {
			return cli.PrintEvaluations(results, cli.OutputFormat(format))
		}
		return nil
	},
}

func init() {
	evaluateCmd.Flags().StringVar(&evalUserID, "user", "", "User id for the evaluation context")
	evaluateCmd.Flags().StringVar(&evalSessionID, "session", "", "Session id for the evaluation context")
	evaluateCmd.Flags().StringVar(&evalSegment, "segment", "", "User segment for the evaluation context")
	evaluateCmd.Flags().StringArrayVar(&evalAttrs, "attr", nil, "Context attribute as key=value (repeatable)")
	rootCmd.AddCommand(evaluateCmd)
}
