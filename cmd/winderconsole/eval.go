package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/etymology/winderconsole/config"
	"github.com/etymology/winderconsole/internal/poll"
)

var evalCmd = &cobra.Command{
	Use:   "eval EXPR...",
	Short: "Evaluate an expression on the remote machine",
	Long: `Send one expression to the machine's control process and print the
decoded result as JSON. Multiple arguments are joined with spaces.

Example:
  winderconsole eval -c console.yaml "Axis.x.position"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)

	evalCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = evalCmd.MarkFlagRequired("config")
}

func runEval(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := []poll.TransportOption{poll.WithRequestTimeout(cfg.RequestTimeout.Duration())}
	if cfg.HTTP2 {
		opts = append(opts, poll.WithHTTP2())
	}
	transport, err := poll.NewHTTPTransport(cfg.RemoteURL, opts...)
	if err != nil {
		return err
	}
	defer transport.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	raw, err := transport.Command(ctx, strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("remote command failed: %w", err)
	}

	out, err := json.Marshal(poll.Decode(raw))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
