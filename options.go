package winderconsole

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"
)

// consoleConfig holds mutable state during Console construction.
type consoleConfig struct {
	title           string
	port            int
	pollInterval    time.Duration
	remoteURL       string
	assets          string
	assetFS         fs.FS
	http2           bool
	requestTimeout  time.Duration
	startPage       string
	startSlot       string
	baseStylesheets []string
	commonModules   []string
	commonSubPages  []SubPage
	logger          *slog.Logger
}

// SubPage names a sub-page loaded into every page and the slot it fills.
type SubPage struct {
	Name string
	Slot string
}

// Option configures a [Console] during construction.
// Options return an error if validation fails.
type Option func(*consoleConfig) error

// WithTitle sets the console title shown in the browser tab.
// Defaults to "Winder Console".
func WithTitle(title string) Option {
	return func(cfg *consoleConfig) error {
		cfg.title = title
		return nil
	}
}

// WithPort sets the HTTP port of the console server. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *consoleConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithPollInterval sets the period of the batched poll. Defaults to 200ms.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *consoleConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithRemoteURL sets the machine control endpoint. Required.
func WithRemoteURL(url string) Option {
	return func(cfg *consoleConfig) error {
		if url == "" {
			return errors.New("remote url cannot be empty")
		}
		cfg.remoteURL = url
		return nil
	}
}

// WithAssets locates pages and module descriptors: an http(s) base URL or
// a local directory.
func WithAssets(location string) Option {
	return func(cfg *consoleConfig) error {
		if location == "" {
			return errors.New("assets location cannot be empty")
		}
		cfg.assets = location
		cfg.assetFS = nil
		return nil
	}
}

// WithAssetFS serves pages and module descriptors from fsys, such as an
// embedded filesystem.
func WithAssetFS(fsys fs.FS) Option {
	return func(cfg *consoleConfig) error {
		if fsys == nil {
			return errors.New("asset filesystem cannot be nil")
		}
		cfg.assetFS = fsys
		cfg.assets = ""
		return nil
	}
}

// WithHTTP2 negotiates HTTP/2 with the remote endpoint.
func WithHTTP2() Option {
	return func(cfg *consoleConfig) error {
		cfg.http2 = true
		return nil
	}
}

// WithRequestTimeout bounds every remote request. Defaults to 5s.
func WithRequestTimeout(d time.Duration) Option {
	return func(cfg *consoleConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		cfg.requestTimeout = d
		return nil
	}
}

// WithStartPage sets the page loaded at startup and the slot it fills.
// An empty slot means "main".
func WithStartPage(name, slot string) Option {
	return func(cfg *consoleConfig) error {
		if name == "" {
			return errors.New("start page cannot be empty")
		}
		cfg.startPage = name
		if slot != "" {
			cfg.startSlot = slot
		}
		return nil
	}
}

// WithBaseStylesheets links stylesheets that stay across page switches.
func WithBaseStylesheets(hrefs ...string) Option {
	return func(cfg *consoleConfig) error {
		cfg.baseStylesheets = append(cfg.baseStylesheets, hrefs...)
		return nil
	}
}

// WithCommonModules loads modules into every page before its content.
func WithCommonModules(names ...string) Option {
	return func(cfg *consoleConfig) error {
		for i, n := range names {
			if n == "" {
				return fmt.Errorf("common module %d: name cannot be empty", i)
			}
		}
		cfg.commonModules = append(cfg.commonModules, names...)
		return nil
	}
}

// WithCommonSubPages loads sub-pages into every page before its content.
func WithCommonSubPages(subs ...SubPage) Option {
	return func(cfg *consoleConfig) error {
		for i, s := range subs {
			if s.Name == "" || s.Slot == "" {
				return fmt.Errorf("common sub-page %d: name and slot are required", i)
			}
		}
		cfg.commonSubPages = append(cfg.commonSubPages, subs...)
		return nil
	}
}

// WithLogger sets the [slog.Logger] used by the console.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *consoleConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}
