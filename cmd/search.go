package cmd

import (
	"fmt"

	"github.com/mastervim/mitre-hunter/internal/config"
	"github.com/mastervim/mitre-hunter/internal/query"
	"github.com/spf13/cobra"
)

var searchCmd = &cobra.Command{
	Use:   "search <keyword>",
	Short: "Search techniques by keyword in name or description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, _, err := loadKnowledgeBase(cmd.Context(), false)
		if err != nil {
			return err
		}

		result := query.SearchKeyword(snapshot, args[0], config.Get().Query.MaxResults)
		printTechniques(snapshot, result, fmt.Sprintf("Search results for %q", args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
