package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var datasourcesCmd = &cobra.Command{
	Use:   "datasources",
	Short: "List all available data sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, _, err := loadKnowledgeBase(cmd.Context(), false)
		if err != nil {
			return err
		}

		names := snapshot.DataSourceNames()
		fmt.Printf("Available data sources (%d):\n", len(names))
		for _, name := range names {
			fmt.Printf("- %s\n", name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasourcesCmd)
}
