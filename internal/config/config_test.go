package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	yaml := `
feed:
  url: wss://feed.example.com/ws
  reconnect_base_delay: 2s
  heartbeat_interval: 15s
signals:
  move_percent: 7.5
logging:
  level: debug
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Feed.URL != "wss://feed.example.com/ws" {
		t.Errorf("Feed.URL = %q, want %q", cfg.Feed.URL, "wss://feed.example.com/ws")
	}
	if cfg.Feed.ReconnectBaseDelay != 2*time.Second {
		t.Errorf("Feed.ReconnectBaseDelay = %v, want 2s", cfg.Feed.ReconnectBaseDelay)
	}
	if cfg.Signals.MovePercent != 7.5 {
		t.Errorf("Signals.MovePercent = %v, want 7.5", cfg.Signals.MovePercent)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_FEED_URL", "wss://feed.example.com/ws")

	yaml := `
feed:
  url: ${TEST_FEED_URL}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Feed.URL != "wss://feed.example.com/ws" {
		t.Errorf("Feed.URL = %q, want env-expanded value", cfg.Feed.URL)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
feed:
  url: wss://feed.example.com/ws
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Feed.ReconnectBaseDelay != DefaultReconnectBaseDelay {
		t.Errorf("ReconnectBaseDelay = %v, want default %v", cfg.Feed.ReconnectBaseDelay, DefaultReconnectBaseDelay)
	}
	if cfg.Feed.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("HeartbeatInterval = %v, want default %v", cfg.Feed.HeartbeatInterval, DefaultHeartbeatInterval)
	}
	if cfg.Signals.StaleThreshold != DefaultStaleThreshold {
		t.Errorf("StaleThreshold = %v, want default %v", cfg.Signals.StaleThreshold, DefaultStaleThreshold)
	}
	if cfg.Signals.MovePercent != DefaultMovePercent {
		t.Errorf("MovePercent = %v, want default %v", cfg.Signals.MovePercent, DefaultMovePercent)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing url", func(c *Config) { c.Feed.URL = "" }, true},
		{"non-ws url", func(c *Config) { c.Feed.URL = "https://feed.example.com" }, true},
		{"max below base", func(c *Config) { c.Feed.ReconnectMaxDelay = 500 * time.Millisecond }, true},
		{"zero heartbeat", func(c *Config) { c.Feed.HeartbeatInterval = -1 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad metrics port", func(c *Config) { c.Metrics.Port = 70000 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Feed.URL = "wss://feed.example.com/ws"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
