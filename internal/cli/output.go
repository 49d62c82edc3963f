package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/flagdeck/internal/flags"
)

// OutputFormat specifies the output format for CLI commands.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintFlags outputs flags in the specified format.
func PrintFlags(defs []flags.Definition, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]flags.Definition{"flags": defs})
	case FormatYAML:
		return printYAML(defs)
	case FormatTable:
		return printFlagTable(defs)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintFlag outputs a single flag in the specified format.
func PrintFlag(def *flags.Definition, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(def)
	case FormatYAML:
		return printYAML(def)
	case FormatTable:
		return printFlagTable([]flags.Definition{*def})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintEvaluations outputs evaluation results in the specified format.
func PrintEvaluations(results map[string]flags.Evaluation, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string]any{"results": results})
	case FormatYAML:
		return printYAML(results)
	case FormatTable:
		return printEvaluationTable(results)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(data any) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printFlagTable(defs []flags.Definition) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Type", "Enabled", "Rollout", "Variants", "Description")

	for _, def := range defs {
		rollout := "-"
		if def.Rollout != nil {
			rollout = fmt.Sprintf("%d%%", def.Rollout.Percentage)
		}

		description := def.Description
		if len(description) > 40 {
			description = description[:37] + "..."
		}

		table.Append(
			def.ID,
			string(def.Type),
			fmt.Sprintf("%t", def.Enabled),
			rollout,
			fmt.Sprintf("%d", len(def.Variants)),
			description,
		)
	}

	return table.Render()
}

func printEvaluationTable(results map[string]flags.Evaluation) error {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Flag", "Value", "Reason", "Variant")

	for _, id := range ids {
		ev := results[id]
		variant := "-"
		if ev.Variant != nil {
			variant = ev.Variant.ID
		}
		table.Append(id, fmt.Sprintf("%v", ev.Value), string(ev.Reason), variant)
	}

	return table.Render()
}
