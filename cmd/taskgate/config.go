package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taskgate/taskgate/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect taskgate configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration",
	Long: `Print the configuration after applying defaults, the optional YAML
file, and TASKGATE_* environment overrides. Useful for verifying what a
deployment will actually run with.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}

		rendered, err := cfg.Dump()
		if err != nil {
			return err
		}
		fmt.Print(rendered)
		return nil
	},
}

func init() {
	configShowCmd.Flags().String("config", "", "Path to a YAML configuration file")
	configCmd.AddCommand(configShowCmd)
}
