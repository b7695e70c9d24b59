package main

import (
	"github.com/spf13/cobra"

	"treaty-bidding-lab/internal/app"
)

// scenariosCmd lists the configured stress scenarios.
var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List and validate stress scenarios",
	Long: `Print the stress scenarios that stress would run, after validation.
With no scenarios file configured the predefined set is listed.

Examples:
  simulate scenarios
  simulate scenarios --scenarios-file configs/scenarios.yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		scenarios, err := app.LoadScenarios(cfg.Stress.ScenariosFile)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), "", scenarios)
	},
}

func init() {
	rootCmd.AddCommand(scenariosCmd)
}
