package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mitre-hunter version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mitre-hunter %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
