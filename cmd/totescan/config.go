package main

import (
	"github.com/spf13/cobra"

	"github.com/TheMichaelB/totescan/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create configuration",
}

var configShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Print the effective configuration",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{"offline": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		return printJSON(cfg)
	},
}

var configInitCmd = &cobra.Command{
	Use:         "init [path]",
	Short:       "Write an example configuration file",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{"offline": "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "totescan.json"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.SaveExample(path); err != nil {
			return err
		}
		printSuccess("Wrote example config to %s", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configInitCmd)
}
