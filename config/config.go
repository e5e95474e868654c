// Package config provides YAML configuration parsing for the winder console.
//
// Example configuration:
//
//	title: Winder 3
//	port: 8080
//	poll_interval: 200ms
//	remote_url: ${WINDER_REMOTE:-http://localhost:6626/}
//	assets: ./site
//
//	start_page: APA
//	start_slot: main
//	base_stylesheets: [Desktop.css]
//	common_modules: [Remote]
//	common_subpages:
//	  - name: MotorStatus
//	    slot: motorStatus
//
//	log_level: info
//	log_file: /var/log/winderconsole.log
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// minPollInterval keeps a misconfigured console from flooding the
	// remote endpoint.
	minPollInterval = 50 * time.Millisecond

	defaultPort           = 8080
	defaultPollInterval   = 200 * time.Millisecond
	defaultRequestTimeout = 5 * time.Second
	defaultStartSlot      = "main"
	defaultLogLevel       = "info"
)

// Config is the root configuration structure for the console.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// Title is the console title. Defaults to "Winder Console" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// PollInterval is the time between batched poll ticks. Defaults to 200ms.
	PollInterval Duration `yaml:"poll_interval"`

	// RemoteURL is the machine control endpoint. Required.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	RemoteURL string `yaml:"remote_url"`

	// Assets locates page markup, stylesheets and module descriptors:
	// an http(s) base URL or a local directory. Required.
	Assets string `yaml:"assets"`

	// HTTP2 negotiates HTTP/2 with the remote endpoint.
	HTTP2 bool `yaml:"http2"`

	// RequestTimeout bounds each remote request. Defaults to 5s.
	RequestTimeout Duration `yaml:"request_timeout"`

	// StartPage is the page loaded at startup. Required.
	StartPage string `yaml:"start_page"`

	// StartSlot is the slot the start page fills. Defaults to "main".
	StartSlot string `yaml:"start_slot"`

	// BaseStylesheets are linked permanently and never unlinked on a page
	// switch.
	BaseStylesheets []string `yaml:"base_stylesheets"`

	// CommonModules are loaded into every page's loader before its content.
	CommonModules []string `yaml:"common_modules"`

	// CommonSubPages are loaded into every page before its content.
	CommonSubPages []SubPageConfig `yaml:"common_subpages"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	// LogFile, if set, receives a copy of every log record.
	LogFile string `yaml:"log_file"`
}

// SubPageConfig names a sub-page and the slot it fills.
type SubPageConfig struct {
	Name string `yaml:"name"`
	Slot string `yaml:"slot"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// AssetsURL reports whether Assets is a remote base URL rather than a
// local directory.
func (c *Config) AssetsURL() bool {
	return strings.HasPrefix(c.Assets, "http://") || strings.HasPrefix(c.Assets, "https://")
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		sub := envVarPattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		name := sub[1]
		hasDefault := len(sub) > 2 && sub[2] != ""

		value, ok := os.LookupEnv(name)
		if !ok {
			if hasDefault {
				return sub[3]
			}
			firstErr = fmt.Errorf("environment variable %q is not set", name)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in remote_url, assets and log_file.
// Defaults are applied for port, poll_interval, request_timeout,
// start_slot and log_level. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = Duration(defaultPollInterval)
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = Duration(defaultRequestTimeout)
	}
	if cfg.StartSlot == "" {
		cfg.StartSlot = defaultStartSlot
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.PollInterval.Duration() < minPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", minPollInterval, c.PollInterval.Duration())
	}
	if c.RequestTimeout.Duration() < 0 {
		return fmt.Errorf("request_timeout cannot be negative, got %s", c.RequestTimeout.Duration())
	}

	if c.RemoteURL == "" {
		return errors.New("remote_url is required")
	}
	expanded, err := expandEnvVars(c.RemoteURL)
	if err != nil {
		return fmt.Errorf("remote_url: %w", err)
	}
	c.RemoteURL = expanded
	if err := checkHTTPURL(c.RemoteURL); err != nil {
		return fmt.Errorf("remote_url: %w", err)
	}

	if c.Assets == "" {
		return errors.New("assets is required")
	}
	if c.Assets, err = expandEnvVars(c.Assets); err != nil {
		return fmt.Errorf("assets: %w", err)
	}
	if c.AssetsURL() {
		if err := checkHTTPURL(c.Assets); err != nil {
			return fmt.Errorf("assets: %w", err)
		}
	} else if info, err := os.Stat(c.Assets); err != nil || !info.IsDir() {
		return fmt.Errorf("assets: %q is neither an http(s) URL nor a directory", c.Assets)
	}

	if c.StartPage == "" {
		return errors.New("start_page is required")
	}

	for i, name := range c.CommonModules {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("common_modules[%d]: name is required", i)
		}
	}

	slots := map[string]int{c.StartSlot: -1}
	for i, sp := range c.CommonSubPages {
		if sp.Name == "" {
			return fmt.Errorf("common_subpages[%d]: name is required", i)
		}
		if sp.Slot == "" {
			return fmt.Errorf("common_subpages[%d] (%s): slot is required", i, sp.Name)
		}
		if prev, dup := slots[sp.Slot]; dup {
			if prev < 0 {
				return fmt.Errorf("common_subpages[%d] (%s): slot %q is the start slot", i, sp.Name, sp.Slot)
			}
			return fmt.Errorf("common_subpages[%d] (%s): slot %q already used by common_subpages[%d]", i, sp.Name, sp.Slot, prev)
		}
		slots[sp.Slot] = i
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	if c.LogFile, err = expandEnvVars(c.LogFile); err != nil {
		return fmt.Errorf("log_file: %w", err)
	}

	return nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}
