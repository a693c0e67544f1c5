package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/insuranceops/commission-processor/internal/api"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("commission-processor v%s\n", api.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
