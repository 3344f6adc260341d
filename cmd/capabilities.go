package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/driftcove/driftcove/internal/config"
	"github.com/driftcove/driftcove/internal/dependency"
	"github.com/driftcove/driftcove/internal/schema"
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "Inspect and invoke registered capabilities",
}

var capabilitiesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered capabilities",
	RunE:  runCapabilitiesList,
}

var capabilitiesCallCmd = &cobra.Command{
	Use:   "call <name> [json-args]",
	Short: "Invoke a capability by name",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runCapabilitiesCall,
}

var capEnabledOnly bool

func init() {
	capabilitiesListCmd.Flags().BoolVar(&capEnabledOnly, "enabled", false, "Only show enabled capabilities")
	capabilitiesCmd.AddCommand(capabilitiesListCmd)
	capabilitiesCmd.AddCommand(capabilitiesCallCmd)
}

// buildRuntime wires the container and enables the configured plugins so the
// registry reflects what serve would expose.
func buildRuntime() (*dependency.Container, *config.Config, error) {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	c, err := dependency.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	ctx := context.Background()
	for id, pc := range cfg.Plugins.Plugins {
		if pc.Enabled {
			if err := c.Host().Enable(ctx, id); err != nil {
				fmt.Printf("Warning: plugin %s failed to enable: %v\n", id, err)
			}
		}
	}
	return c, cfg, nil
}

func runCapabilitiesList(_ *cobra.Command, _ []string) error {
	c, _, err := buildRuntime()
	if err != nil {
		return err
	}
	defer c.Host().ShutdownAll(context.Background())

	caps := c.Registry().List(capEnabledOnly)
	if len(caps) == 0 {
		fmt.Println("No capabilities registered.")
		return nil
	}

	fmt.Printf("%s Capabilities (%d)\n\n", logo, len(caps))
	for _, cap := range caps {
		mark := "✓"
		if !cap.Enabled {
			mark = "✗"
		}
		fmt.Printf("  %s %-22s %-10s calls=%-5d %s\n", mark, cap.Name, cap.Category, cap.CallCount, cap.Description)
	}
	return nil
}

func runCapabilitiesCall(_ *cobra.Command, args []string) error {
	c, _, err := buildRuntime()
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer c.Host().ShutdownAll(ctx)

	name := args[0]
	callArgs := map[string]any{}
	if len(args) == 2 {
		if err := json.Unmarshal([]byte(args[1]), &callArgs); err != nil {
			return fmt.Errorf("parse args: %w", err)
		}
	}

	c.Host().ExecuteHooks(ctx, schema.HookToolBeforeExecute, map[string]any{
		"capability": name,
		"args":       callArgs,
	}, false)

	res := c.Registry().Call(ctx, name, callArgs)

	c.Host().ExecuteHooks(ctx, schema.HookToolAfterExecute, map[string]any{
		"capability": name,
		"success":    res.Success,
	}, false)

	out, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
