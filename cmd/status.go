package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/driftcove/driftcove/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show driftcove status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	cfgPath := config.ConfigPath()

	fmt.Printf("%s driftcove Status\n\n", logo)

	_, statErr := os.Stat(cfgPath)
	cfgMark := "✗"
	if statErr == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:     %s %s\n", cfgPath, cfgMark)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}

	ws := cfg.WorkspacePath()
	_, wsErr := os.Stat(ws)
	wsMark := "✗"
	if wsErr == nil {
		wsMark = "✓"
	}
	fmt.Printf("Workspace:  %s %s\n", ws, wsMark)
	fmt.Printf("Plugins:    %s\n", cfg.PluginsDir())
	fmt.Printf("Model:      %s\n\n", cfg.LLM.Model)

	enabled := 0
	for _, pc := range cfg.Plugins.Plugins {
		if pc.Enabled {
			enabled++
		}
	}
	fmt.Printf("Configured plugins: %d (%d enabled at startup)\n", len(cfg.Plugins.Plugins), enabled)
	fmt.Printf("External servers:   %d (sync %s)\n", len(cfg.Broker.Servers), cfg.Broker.SyncSchedule)
	fmt.Printf("Gateway port:       %d\n", cfg.Gateway.Port)
	return nil
}
