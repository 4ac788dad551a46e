package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <technique-id>",
	Short: "Show details for a technique by its ATT&CK id",
	Long: `Show the full record for one technique, looked up by its external ATT&CK
identifier. Sub-technique ids work too.

  mitre-hunter info T1003
  mitre-hunter info T1003.001`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, _, err := loadKnowledgeBase(cmd.Context(), false)
		if err != nil {
			return err
		}

		technique, ok := snapshot.TechniqueByExternalID(args[0])
		if !ok {
			return fmt.Errorf("technique %q not found", args[0])
		}

		fmt.Printf("ID:            %s\n", technique.ExternalID)
		fmt.Printf("Name:          %s\n", technique.Name)
		fmt.Printf("Tactics:       %s\n", strings.Join(technique.Tactics, ", "))
		fmt.Printf("Platforms:     %s\n", strings.Join(technique.Platforms, ", "))
		fmt.Printf("Data sources:  %s\n", strings.Join(snapshot.DataSourceNamesFor(technique.ID), ", "))
		fmt.Printf("Threat actors: %s\n", strings.Join(snapshot.ActorNamesFor(technique.ID), ", "))
		fmt.Printf("Mitigations:   %s\n", strings.Join(snapshot.MitigationNamesFor(technique.ID), ", "))
		if technique.ParentID != "" {
			if parent, ok := snapshot.Techniques[technique.ParentID]; ok {
				fmt.Printf("Parent:        %s (%s)\n", parent.ExternalID, parent.Name)
			}
		}
		if technique.URL != "" {
			fmt.Printf("URL:           %s\n", technique.URL)
		}
		fmt.Printf("\n%s\n", technique.Description)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
