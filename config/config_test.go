package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const minimal = `
remote_url: http://localhost:6626/
assets: https://assets.example/site/
start_page: APA
`

func TestParse_MinimalConfig(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.PollInterval.Duration() != 200*time.Millisecond {
		t.Errorf("PollInterval = %v, want 200ms", cfg.PollInterval.Duration())
	}
	if cfg.RequestTimeout.Duration() != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.RequestTimeout.Duration())
	}
	if cfg.StartSlot != "main" {
		t.Errorf("StartSlot = %q, want main", cfg.StartSlot)
	}
	if cfg.Level() != slog.LevelInfo {
		t.Errorf("Level() = %v, want info", cfg.Level())
	}
	if !cfg.AssetsURL() {
		t.Error("AssetsURL() = false for an https location")
	}
}

func TestParse_FullConfig(t *testing.T) {
	dir := t.TempDir()
	yaml := `
title: Winder 3
port: 9090
poll_interval: 100ms
remote_url: http://10.0.0.5:6626/
assets: ` + dir + `
http2: true
request_timeout: 2s
start_page: Jog
start_slot: content
base_stylesheets: [Desktop.css, Theme.css]
common_modules: [Remote, Units]
common_subpages:
  - {name: MotorStatus, slot: motorStatus}
  - {name: Alarms, slot: alarms}
log_level: debug
log_file: /tmp/console.log
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Title != "Winder 3" || cfg.Port != 9090 || !cfg.HTTP2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.PollInterval.Duration() != 100*time.Millisecond || cfg.RequestTimeout.Duration() != 2*time.Second {
		t.Errorf("durations = %v, %v", cfg.PollInterval.Duration(), cfg.RequestTimeout.Duration())
	}
	if cfg.StartPage != "Jog" || cfg.StartSlot != "content" {
		t.Errorf("start = %q, %q", cfg.StartPage, cfg.StartSlot)
	}
	if len(cfg.BaseStylesheets) != 2 || len(cfg.CommonModules) != 2 {
		t.Errorf("lists = %v, %v", cfg.BaseStylesheets, cfg.CommonModules)
	}
	if len(cfg.CommonSubPages) != 2 || cfg.CommonSubPages[1] != (SubPageConfig{Name: "Alarms", Slot: "alarms"}) {
		t.Errorf("CommonSubPages = %+v", cfg.CommonSubPages)
	}
	if cfg.Level() != slog.LevelDebug {
		t.Errorf("Level() = %v, want debug", cfg.Level())
	}
	if cfg.AssetsURL() {
		t.Error("AssetsURL() = true for a directory")
	}
}

func TestParse_EnvVarSubstitution(t *testing.T) {
	t.Setenv("WINDER_REMOTE", "http://machine:6626/")
	dir := t.TempDir()
	t.Setenv("WINDER_SITE", dir)

	yaml := `
remote_url: ${WINDER_REMOTE}
assets: ${WINDER_SITE}
start_page: APA
log_file: ${WINDER_LOG:-/var/log/winder.log}
`
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.RemoteURL != "http://machine:6626/" {
		t.Errorf("RemoteURL = %q", cfg.RemoteURL)
	}
	if cfg.Assets != dir {
		t.Errorf("Assets = %q, want %q", cfg.Assets, dir)
	}
	if cfg.LogFile != "/var/log/winder.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty document", ``, "remote_url is required"},
		{"missing remote", `{assets: "https://a.example/", start_page: APA}`, "remote_url is required"},
		{"remote env missing", `{remote_url: "${NOPE_NOT_SET}", assets: "https://a.example/", start_page: APA}`, "remote_url"},
		{"remote scheme", `{remote_url: "ftp://x/", assets: "https://a.example/", start_page: APA}`, "scheme must be http or https"},
		{"remote without scheme", `{remote_url: "localhost:6626", assets: "https://a.example/", start_page: APA}`, "remote_url"},
		{"missing assets", `{remote_url: "http://x/", start_page: APA}`, "assets is required"},
		{"assets not a dir", `{remote_url: "http://x/", assets: "/definitely/not/here", start_page: APA}`, "neither an http(s) URL nor a directory"},
		{"missing start page", `{remote_url: "http://x/", assets: "https://a.example/"}`, "start_page is required"},
		{"poll interval too small", `{remote_url: "http://x/", assets: "https://a.example/", start_page: APA, poll_interval: 10ms}`, "poll_interval must be at least"},
		{"negative timeout", `{remote_url: "http://x/", assets: "https://a.example/", start_page: APA, request_timeout: -1s}`, "request_timeout cannot be negative"},
		{"bad port", `{remote_url: "http://x/", assets: "https://a.example/", start_page: APA, port: 70000}`, "port must be between"},
		{"blank common module", `{remote_url: "http://x/", assets: "https://a.example/", start_page: APA, common_modules: [Remote, " "]}`, "common_modules[1]"},
		{"sub-page without slot", `{remote_url: "http://x/", assets: "https://a.example/", start_page: APA, common_subpages: [{name: A}]}`, "common_subpages[0] (A): slot is required"},
		{"sub-page in start slot", `{remote_url: "http://x/", assets: "https://a.example/", start_page: APA, common_subpages: [{name: A, slot: main}]}`, "is the start slot"},
		{"duplicate sub-page slot", `{remote_url: "http://x/", assets: "https://a.example/", start_page: APA, common_subpages: [{name: A, slot: s}, {name: B, slot: s}]}`, "already used by common_subpages[0]"},
		{"bad log level", `{remote_url: "http://x/", assets: "https://a.example/", start_page: APA, log_level: loud}`, "log_level must be"},
		{"unknown key", `{remote_url: "http://x/", assets: "https://a.example/", start_page: APA, endpoints: []}`, "field endpoints not found"},
		{"invalid duration", `{remote_url: "http://x/", assets: "https://a.example/", start_page: APA, poll_interval: soon}`, "invalid duration"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Parse() error = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("remote_url: [unclosed"))
	if err == nil {
		t.Fatal("Parse() expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "failed to parse YAML") {
		t.Errorf("error = %v", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.yaml")
	if err := os.WriteFile(path, []byte(minimal), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StartPage != "APA" {
		t.Errorf("StartPage = %q", cfg.StartPage)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() of a missing file should fail")
	}
}

func TestLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		if got := cfg.Level(); got != tt.want {
			t.Errorf("Level(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR", "value")
	t.Setenv("EMPTY_VAR", "")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"no vars", "plain text", "plain text", false},
		{"simple var", "${TEST_VAR}", "value", false},
		{"var in text", "prefix ${TEST_VAR} suffix", "prefix value suffix", false},
		{"multiple vars", "${TEST_VAR}-${TEST_VAR}", "value-value", false},
		{"with default (var set)", "${TEST_VAR:-default}", "value", false},
		{"with default (var unset)", "${UNSET:-default}", "default", false},
		{"missing required", "${MISSING}", "", true},
		{"empty default (var unset)", "${UNSET:-}", "", false},
		{"set but empty var", "${EMPTY_VAR}", "", false},
		{"set but empty with default", "${EMPTY_VAR:-fallback}", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVars(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expandEnvVars() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("expandEnvVars() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("expandEnvVars() = %q, want %q", got, tt.want)
			}
		})
	}
}
