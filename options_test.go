package winderconsole

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

// required returns the options every console needs.
func required() []Option {
	return []Option{
		WithRemoteURL("http://localhost:6626/"),
		WithAssetFS(fstest.MapFS{}),
		WithStartPage("APA", ""),
	}
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(required()...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.Port() != defaultPort {
		t.Errorf("Port() = %d, want %d", c.Port(), defaultPort)
	}
	if c.PollInterval() != defaultPollInterval {
		t.Errorf("PollInterval() = %v, want %v", c.PollInterval(), defaultPollInterval)
	}
	if name, slot := c.StartPage(); name != "APA" || slot != "main" {
		t.Errorf("StartPage() = %q, %q", name, slot)
	}
}

func TestNew_MissingRequired(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
		want string
	}{
		{"no remote", []Option{WithAssets("./site"), WithStartPage("APA", "")}, "remote url"},
		{"no assets", []Option{WithRemoteURL("http://x/"), WithStartPage("APA", "")}, "asset location"},
		{"no start page", []Option{WithRemoteURL("http://x/"), WithAssets("./site")}, "start page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("New() error = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestOptions_Validation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"port zero", WithPort(0)},
		{"port too large", WithPort(65536)},
		{"poll interval zero", WithPollInterval(0)},
		{"request timeout negative", WithRequestTimeout(-time.Second)},
		{"empty remote", WithRemoteURL("")},
		{"empty assets", WithAssets("")},
		{"nil asset fs", WithAssetFS(nil)},
		{"empty start page", WithStartPage("", "main")},
		{"empty common module", WithCommonModules("Remote", "")},
		{"sub-page without slot", WithCommonSubPages(SubPage{Name: "MotorStatus"})},
		{"nil logger", WithLogger(nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(append(required(), tt.opt)...); err == nil {
				t.Error("New() expected error, got nil")
			}
		})
	}
}

func TestOptions_Apply(t *testing.T) {
	c, err := New(append(required(),
		WithTitle("Winder 3"),
		WithPort(9090),
		WithPollInterval(50*time.Millisecond),
		WithRequestTimeout(time.Second),
		WithHTTP2(),
		WithStartPage("Jog", "content"),
		WithBaseStylesheets("Desktop.css"),
		WithCommonModules("Remote"),
		WithCommonSubPages(SubPage{Name: "MotorStatus", Slot: "motorStatus"}),
	)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	cfg := c.cfg
	if cfg.title != "Winder 3" || cfg.port != 9090 || !cfg.http2 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.pollInterval != 50*time.Millisecond || cfg.requestTimeout != time.Second {
		t.Errorf("intervals = %v, %v", cfg.pollInterval, cfg.requestTimeout)
	}
	if cfg.startPage != "Jog" || cfg.startSlot != "content" {
		t.Errorf("start = %q, %q", cfg.startPage, cfg.startSlot)
	}
	if len(cfg.baseStylesheets) != 1 || len(cfg.commonModules) != 1 || len(cfg.commonSubPages) != 1 {
		t.Errorf("lists = %v %v %v", cfg.baseStylesheets, cfg.commonModules, cfg.commonSubPages)
	}
}

func TestOptions_AssetsReplaceEachOther(t *testing.T) {
	c, err := New(append(required(), WithAssets("https://assets.example/"))...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.cfg.assetFS != nil || c.cfg.assets != "https://assets.example/" {
		t.Errorf("assets = %q, fs = %v", c.cfg.assets, c.cfg.assetFS)
	}
}

func TestWithLogger_Used(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	c, err := New(append(required(), WithLogger(logger))...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	c.logger.Info("probe")
	if !strings.Contains(buf.String(), "probe") {
		t.Errorf("custom logger not used, got %q", buf.String())
	}
}
