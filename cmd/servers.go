package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftcove/driftcove/internal/config"
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "List configured external tool servers",
	RunE:  runServers,
}

func runServers(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if len(cfg.Broker.Servers) == 0 {
		fmt.Println("No external servers configured.")
		return nil
	}

	fmt.Printf("%s External servers (%d)\n\n", logo, len(cfg.Broker.Servers))
	for name, sc := range cfg.Broker.Servers {
		launch := sc.Endpoint
		if sc.Command != "" {
			launch = sc.Command
			if len(sc.Args) > 0 {
				launch += " " + strings.Join(sc.Args, " ")
			}
		}
		auto := ""
		if sc.AutoStart {
			auto = " (autostart)"
		}
		fmt.Printf("  %-14s %s%s\n", name, launch, auto)
	}
	return nil
}
