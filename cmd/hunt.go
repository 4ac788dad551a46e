package cmd

import (
	"fmt"
	"strings"

	"github.com/mastervim/mitre-hunter/api/schemas"
	"github.com/mastervim/mitre-hunter/internal/config"
	"github.com/mastervim/mitre-hunter/internal/query"
	"github.com/spf13/cobra"
)

var huntFlags struct {
	dataSource string
	tactic     string
	actor      string
	platform   string
}

var huntCmd = &cobra.Command{
	Use:   "hunt",
	Short: "Find techniques by data source, tactic, actor, and platform",
	Long: `Find techniques matching every given filter (logical AND). Values match
case-insensitively as substrings of the target's name; threat actor filters
match aliases too.

  mitre-hunter hunt --datasource "process creation"
  mitre-hunter hunt --datasource "command execution" --tactic persistence --platform windows`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var filters []schemas.Filter
		for _, f := range []struct {
			dimension string
			value     string
		}{
			{schemas.DimDataSource, huntFlags.dataSource},
			{schemas.DimTactic, huntFlags.tactic},
			{schemas.DimActor, huntFlags.actor},
			{schemas.DimPlatform, huntFlags.platform},
		} {
			if strings.TrimSpace(f.value) != "" {
				filters = append(filters, schemas.Filter{Dimension: f.dimension, Value: f.value})
			}
		}
		if len(filters) == 0 {
			return fmt.Errorf("at least one of --datasource, --tactic, --actor, --platform is required")
		}

		snapshot, _, err := loadKnowledgeBase(cmd.Context(), false)
		if err != nil {
			return err
		}

		result, err := query.Run(snapshot, filters, config.Get().Query.MaxResults)
		if err != nil {
			return err
		}

		var parts []string
		for _, f := range filters {
			parts = append(parts, fmt.Sprintf("%s=%q", f.Dimension, f.Value))
		}
		printTechniques(snapshot, result, "Techniques for "+strings.Join(parts, ", "))
		return nil
	},
}

func init() {
	huntCmd.Flags().StringVar(&huntFlags.dataSource, "datasource", "", "data source to filter by (e.g. 'Process Creation')")
	huntCmd.Flags().StringVar(&huntFlags.tactic, "tactic", "", "tactic to filter by (e.g. 'persistence')")
	huntCmd.Flags().StringVar(&huntFlags.actor, "actor", "", "threat actor to filter by (e.g. 'APT29')")
	huntCmd.Flags().StringVar(&huntFlags.platform, "platform", "", "platform to filter by (e.g. 'Windows')")
	rootCmd.AddCommand(huntCmd)
}
