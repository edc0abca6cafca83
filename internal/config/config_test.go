package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Video.Service != "kling" {
		t.Errorf("Service = %q, want kling", cfg.Video.Service)
	}
	if cfg.Video.MaxAttempts != 30 || cfg.Video.PollInterval != 10*time.Second {
		t.Errorf("poll budget = %d x %v, want 30 x 10s", cfg.Video.MaxAttempts, cfg.Video.PollInterval)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
store:
  backend: memory
video:
  service: sora
  poll_interval: 2s
  max_attempts: 5
  backoff: 1.5
  base_urls:
    sora: http://localhost:1234
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Store.Backend != StoreMemory {
		t.Errorf("Store.Backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Video.PollInterval != 2*time.Second || cfg.Video.MaxAttempts != 5 || cfg.Video.Backoff != 1.5 {
		t.Errorf("Video = %+v", cfg.Video)
	}
	if got := cfg.BaseURL("sora"); got != "http://localhost:1234" {
		t.Errorf("BaseURL(sora) = %q", got)
	}
	if got := cfg.BaseURL("kling"); got != "" {
		t.Errorf("BaseURL(kling) = %q, want empty", got)
	}
	// Defaults survive for keys the file does not mention.
	if cfg.Blobs.Backend != BlobsDir {
		t.Errorf("Blobs.Backend = %q, want dir", cfg.Blobs.Backend)
	}
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "video:\n  service: sora\nserver:\n  port: 9090\n")
	t.Setenv("VIDEO_SERVICE", "runway")
	t.Setenv("SWIPE_PORT", "7070")
	t.Setenv("VIDEO_POLL_INTERVAL", "250ms")
	t.Setenv("SWIPE_STORE", "memory")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if cfg.Video.Service != "runway" {
		t.Errorf("Service = %q, want runway", cfg.Video.Service)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Video.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v, want 250ms", cfg.Video.PollInterval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown store", func(c *Config) { c.Store.Backend = "redis" }, "unknown store backend"},
		{"dynamo without table", func(c *Config) { c.Store.Backend = StoreDynamo }, "dynamo_table"},
		{"s3 without bucket", func(c *Config) { c.Blobs.Backend = BlobsS3 }, "bucket"},
		{"unknown blobs", func(c *Config) { c.Blobs.Backend = "ftp" }, "unknown blob backend"},
		{"zero attempts", func(c *Config) { c.Video.MaxAttempts = 0 }, "max_attempts"},
		{"shrinking backoff", func(c *Config) { c.Video.Backoff = 0.5 }, "backoff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [not, a, map")
	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile() accepted invalid YAML")
	}
}

func TestGetConfigPath_EnvOverride(t *testing.T) {
	t.Setenv("SWIPE_CONFIG", "/tmp/custom.yaml")
	if got := getConfigPath(); got != "/tmp/custom.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}

func TestLocations(t *testing.T) {
	cfg := Default()
	cfg.Store.SQLitePath = "/data/sessions.db"
	cfg.Blobs.Dir = "/data/photos"
	if got := cfg.StoreLocation(); got != "/data/sessions.db" {
		t.Errorf("StoreLocation() = %q", got)
	}
	if got := cfg.BlobLocation(); got != "/data/photos" {
		t.Errorf("BlobLocation() = %q", got)
	}

	cfg.Store = StoreConfig{Backend: StoreDynamo, DynamoTable: "swipe-sessions"}
	cfg.Blobs = BlobConfig{Backend: BlobsS3, Bucket: "swipe-media"}
	if got := cfg.StoreLocation(); got != "swipe-sessions" {
		t.Errorf("StoreLocation() = %q", got)
	}
	if got := cfg.BlobLocation(); got != "s3://swipe-media" {
		t.Errorf("BlobLocation() = %q", got)
	}

	cfg.Store = StoreConfig{Backend: StoreMemory}
	if got := cfg.StoreLocation(); got != "in-process" {
		t.Errorf("StoreLocation() = %q", got)
	}
}
