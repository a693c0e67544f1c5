package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var carriersCmd = &cobra.Command{
	Use:   "carriers",
	Short: "List known and configured carriers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Store.Close()

		configured := map[string]bool{}
		for _, name := range a.Configs.ConfiguredCarriers() {
			configured[name] = true
		}

		names, err := a.Store.ListKnownNames()
		if err != nil {
			return err
		}
		if len(names) == 0 && len(configured) == 0 {
			fmt.Println("No carriers registered yet")
			return nil
		}

		for _, name := range names {
			if configured[name] {
				fmt.Printf("%s (transformer)\n", name)
				delete(configured, name)
			} else {
				fmt.Println(name)
			}
		}
		// Configured carriers that no file has been processed for yet.
		for _, name := range a.Configs.ConfiguredCarriers() {
			if configured[name] {
				fmt.Printf("%s (transformer, no imports)\n", name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(carriersCmd)
}
