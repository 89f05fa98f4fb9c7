package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/qualgate/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		settings := cfg.Settings()
		if jsonOutput() {
			m := make(map[string]string, len(settings))
			for _, kv := range settings {
				m[kv[0]] = kv[1]
			}
			return printJSON(m)
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.AppendHeader(table.Row{"Key", "Value"})
		for _, kv := range settings {
			tw.AppendRow(table.Row{kv[0], kv[1]})
		}
		tw.Render()
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config files that are read",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("user:    %s\n", config.GetUserConfigPath())
		fmt.Printf("project: %s\n", cfg.Resolve(config.ProjectConfigName))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}
