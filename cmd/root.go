// Package cmd implements the driftcove CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"
const logo = "🐙"

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "driftcove",
	Short: logo + " driftcove — extensible AI agent runtime",
	Long:  logo + " driftcove — capability registry, plugin host, and external tool broker for AI agents",
}

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(pluginsCmd)
	rootCmd.AddCommand(capabilitiesCmd)
	rootCmd.AddCommand(serversCmd)
}
