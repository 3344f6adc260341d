package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftcove/driftcove/internal/config"
	"github.com/driftcove/driftcove/internal/dependency"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List every discoverable plugin",
	RunE:  runPlugins,
}

func runPlugins(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c, err := dependency.New(cfg)
	if err != nil {
		return err
	}

	metas := c.Host().Discover()
	if len(metas) == 0 {
		fmt.Println("No plugins found.")
		return nil
	}

	fmt.Printf("%s Plugins (%d)\n\n", logo, len(metas))
	for _, meta := range metas {
		state := "disabled"
		if pc, ok := cfg.Plugins.Plugins[meta.ID]; ok && pc.Enabled {
			state = "enabled"
		}
		fmt.Printf("  %-14s v%-8s %-9s %s\n", meta.ID, meta.Version, state, meta.Description)
		if len(meta.Requires) > 0 {
			fmt.Printf("  %-14s requires: %s\n", "", strings.Join(meta.Requires, ", "))
		}
		if len(meta.Provides) > 0 {
			fmt.Printf("  %-14s provides: %s\n", "", strings.Join(meta.Provides, ", "))
		}
	}
	return nil
}
