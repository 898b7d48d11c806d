package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recorder.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
instance:
  id: recorder-test

api:
  api_key: test-key

database:
  host: localhost
  name: ticks
  user: recorder
  password: secret

recorder:
  feeds:
    - stream: mini.s
      feed: BTC_USDT_Perp@500
    - stream: mini.s
      feed: ETH_USDT_Perp@500
`

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}

	if cfg.Instance.ID != "recorder-test" {
		t.Errorf("instance id = %q", cfg.Instance.ID)
	}
	if len(cfg.Recorder.Feeds) != 2 {
		t.Errorf("feeds = %d, want 2", len(cfg.Recorder.Feeds))
	}
	if cfg.Recorder.Feeds[0].Stream != "mini.s" || cfg.Recorder.Feeds[0].Feed != "BTC_USDT_Perp@500" {
		t.Errorf("first feed = %+v", cfg.Recorder.Feeds[0])
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, validConfig)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.API.WSURL != DefaultWSURL {
		t.Errorf("ws_url = %q, want default", cfg.API.WSURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("timeout = %v, want default", cfg.API.Timeout)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("db port = %d, want %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Database.SSLMode != DefaultDBSSLMode {
		t.Errorf("ssl mode = %q, want %q", cfg.Database.SSLMode, DefaultDBSSLMode)
	}
	if cfg.Recorder.BatchSize != DefaultBatchSize {
		t.Errorf("batch size = %d, want %d", cfg.Recorder.BatchSize, DefaultBatchSize)
	}
	if cfg.Recorder.FlushInterval != DefaultFlushInterval {
		t.Errorf("flush interval = %v, want %v", cfg.Recorder.FlushInterval, DefaultFlushInterval)
	}
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "from-env")

	path := writeConfig(t, strings.Replace(validConfig, "password: secret", "password: ${TEST_DB_PASSWORD}", 1))

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Password != "from-env" {
		t.Errorf("password = %q, want expanded env var", cfg.Database.Password)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "instance: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestValidate(t *testing.T) {
	base := func() *RecorderConfig {
		cfg := &RecorderConfig{}
		cfg.Instance.ID = "r1"
		cfg.Database = DBConfig{
			Host: "localhost", Name: "ticks", User: "u", Password: "p",
			MaxConns: 10, MinConns: 2,
		}
		cfg.Recorder.Feeds = []FeedConfig{{Stream: "mini.s", Feed: "BTC_USDT_Perp@500"}}
		cfg.Recorder.BatchSize = 100
		cfg.Recorder.FlushInterval = time.Second
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*RecorderConfig)
		wantErr string
	}{
		{name: "valid", mutate: func(*RecorderConfig) {}},
		{
			name:    "missing instance id",
			mutate:  func(c *RecorderConfig) { c.Instance.ID = "" },
			wantErr: "instance.id",
		},
		{
			name:    "missing db host",
			mutate:  func(c *RecorderConfig) { c.Database.Host = "" },
			wantErr: "database.host",
		},
		{
			name:    "no feeds",
			mutate:  func(c *RecorderConfig) { c.Recorder.Feeds = nil },
			wantErr: "recorder.feeds",
		},
		{
			name:    "feed missing stream",
			mutate:  func(c *RecorderConfig) { c.Recorder.Feeds[0].Stream = "" },
			wantErr: "feeds[0].stream",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *RecorderConfig) { c.Recorder.BatchSize = 0 },
			wantErr: "batch_size",
		},
		{
			name:    "min conns above max",
			mutate:  func(c *RecorderConfig) { c.Database.MinConns = 20 },
			wantErr: "min_conns",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate failed: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
