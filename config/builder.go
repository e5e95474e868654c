package config

import (
	"log/slog"

	"github.com/etymology/winderconsole"
)

// BuildOptions converts parsed configuration into console options.
//
// The logger is passed through; pass nil to use slog.Default.
func BuildOptions(cfg *Config, logger *slog.Logger) []winderconsole.Option {
	opts := []winderconsole.Option{
		winderconsole.WithPort(cfg.Port),
		winderconsole.WithPollInterval(cfg.PollInterval.Duration()),
		winderconsole.WithRemoteURL(cfg.RemoteURL),
		winderconsole.WithAssets(cfg.Assets),
		winderconsole.WithStartPage(cfg.StartPage, cfg.StartSlot),
	}

	if cfg.Title != "" {
		opts = append(opts, winderconsole.WithTitle(cfg.Title))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, winderconsole.WithRequestTimeout(cfg.RequestTimeout.Duration()))
	}
	if cfg.HTTP2 {
		opts = append(opts, winderconsole.WithHTTP2())
	}
	if len(cfg.BaseStylesheets) > 0 {
		opts = append(opts, winderconsole.WithBaseStylesheets(cfg.BaseStylesheets...))
	}
	if len(cfg.CommonModules) > 0 {
		opts = append(opts, winderconsole.WithCommonModules(cfg.CommonModules...))
	}
	if len(cfg.CommonSubPages) > 0 {
		subs := make([]winderconsole.SubPage, len(cfg.CommonSubPages))
		for i, sp := range cfg.CommonSubPages {
			subs[i] = winderconsole.SubPage{Name: sp.Name, Slot: sp.Slot}
		}
		opts = append(opts, winderconsole.WithCommonSubPages(subs...))
	}
	if logger != nil {
		opts = append(opts, winderconsole.WithLogger(logger))
	}

	return opts
}
