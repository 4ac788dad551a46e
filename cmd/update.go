package cmd

import (
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download the latest MITRE ATT&CK bundle and rebuild the knowledge base",
	Long: `Force-download the enterprise ATT&CK STIX bundle, replace the on-disk
cache, and rebuild the knowledge base once to validate the new data. The
load report is printed so data-quality skips are visible.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, report, err := loadKnowledgeBase(cmd.Context(), true)
		if err != nil {
			return err
		}
		printLoadReport(report)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(updateCmd)
}
