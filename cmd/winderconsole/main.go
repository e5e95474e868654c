// Package main is the entry point for the winderconsole CLI.
//
// Usage:
//
//	winderconsole serve -c console.yaml      # Start the console
//	winderconsole validate -c console.yaml   # Validate configuration
//	winderconsole eval -c console.yaml EXPR  # Evaluate one remote expression
//	winderconsole version                    # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd only shows help; functionality is in subcommands.
var rootCmd = &cobra.Command{
	Use:   "winderconsole",
	Short: "Operator console for a winding machine",
	Long: `winderconsole serves the operator console of a winding machine.

It assembles pages and modules from an asset location, binds their widgets
to values on the machine's control process and keeps them current with a
single batched poll.

Quick start:
  1. Create a config file (console.yaml)
  2. Run: winderconsole serve -c console.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  remote_url: http://localhost:6626/
  assets: ./site
  start_page: APA
  common_modules: [Remote]`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this winderconsole binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "winderconsole %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "  commit: %s\n", commit)
		fmt.Fprintf(cmd.OutOrStdout(), "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
