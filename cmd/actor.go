package cmd

import (
	"fmt"

	"github.com/mastervim/mitre-hunter/api/schemas"
	"github.com/mastervim/mitre-hunter/internal/config"
	"github.com/mastervim/mitre-hunter/internal/query"
	"github.com/spf13/cobra"
)

var actorCmd = &cobra.Command{
	Use:   "actor <name>",
	Short: "Find techniques used by a threat actor",
	Long: `Find every technique reachable via a "uses" relationship from threat
actors whose name or alias contains the given string, case-insensitively.

  mitre-hunter actor APT29`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, _, err := loadKnowledgeBase(cmd.Context(), false)
		if err != nil {
			return err
		}

		filters := []schemas.Filter{{Dimension: schemas.DimActor, Value: args[0]}}
		result, err := query.Run(snapshot, filters, config.Get().Query.MaxResults)
		if err != nil {
			return err
		}
		printTechniques(snapshot, result, fmt.Sprintf("Techniques for threat actor %q", args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(actorCmd)
}
