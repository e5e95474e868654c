package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/etymology/winderconsole/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a console configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  winderconsole validate -c console.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")
	fmt.Fprintf(out, "  Port:           %d\n", cfg.Port)
	fmt.Fprintf(out, "  Poll interval:  %s\n", cfg.PollInterval.Duration())
	fmt.Fprintf(out, "  Remote:         %s\n", cfg.RemoteURL)
	fmt.Fprintf(out, "  Assets:         %s\n", cfg.Assets)
	fmt.Fprintf(out, "  Start page:     %s (slot %s)\n", cfg.StartPage, cfg.StartSlot)
	fmt.Fprintf(out, "  Common modules: %d\n", len(cfg.CommonModules))
	fmt.Fprintf(out, "  Sub-pages:      %d\n", len(cfg.CommonSubPages))

	return nil
}
