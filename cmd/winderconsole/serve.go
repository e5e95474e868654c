package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/etymology/winderconsole"
	"github.com/etymology/winderconsole/config"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the console server",
	Long: `Start the winder console.

The server will:
  - Load configuration from the specified YAML file
  - Load the start page and its modules from the asset location
  - Poll the machine for every bound widget
  - Serve the console UI on the configured port

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  winderconsole serve -c console.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level.Set(cfg.Level())
	logger, closer, err := newLogger(os.Stderr, cfg.LogFile)
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	logger.Info("config loaded",
		"remote", cfg.RemoteURL,
		"assets", cfg.Assets,
		"start_page", cfg.StartPage,
		"common_modules", len(cfg.CommonModules),
	)

	console, err := winderconsole.New(config.BuildOptions(cfg, logger)...)
	if err != nil {
		return fmt.Errorf("failed to create console: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- console.Start(ctx)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		logger.Info("shutdown complete")
		return nil

	case <-ctx.Done():
		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			logger.Info("shutdown complete")
			return nil
		case <-time.After(shutdownTimeout):
			logger.Warn("shutdown timed out",
				"timeout", shutdownTimeout.String(),
				"action", "forcing exit",
			)
			return nil
		}
	}
}
