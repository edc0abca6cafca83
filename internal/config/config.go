// Package config loads swipe-story settings from a YAML file and the
// environment. Environment variables take precedence over the file; command
// line flags, applied by each binary, take precedence over both.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreDynamo = "dynamo"

	BlobsDir = "dir"
	BlobsS3  = "s3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	StaticDir string `yaml:"static_dir"` // optional frontend build to serve at /
}

// StoreConfig selects where session and task records live.
type StoreConfig struct {
	Backend     string `yaml:"backend"` // "memory", "sqlite", or "dynamo"
	SQLitePath  string `yaml:"sqlite_path"`
	DynamoTable string `yaml:"dynamo_table"`
}

// BlobConfig selects where uploaded photo bytes live.
type BlobConfig struct {
	Backend       string        `yaml:"backend"` // "dir" or "s3"
	Dir           string        `yaml:"dir"`
	Bucket        string        `yaml:"bucket"`
	PresignExpiry time.Duration `yaml:"presign_expiry"`
}

// VideoConfig configures the video generation client and its poll budget.
type VideoConfig struct {
	Service      string            `yaml:"service"` // sora, kling, jimeng, qwen, runway
	PollInterval time.Duration     `yaml:"poll_interval"`
	MaxAttempts  int               `yaml:"max_attempts"`
	Backoff      float64           `yaml:"backoff"`
	MaxInterval  time.Duration     `yaml:"max_interval"`
	BaseURLs     map[string]string `yaml:"base_urls"` // per-service endpoint overrides
}

// GeminiConfig configures the storybook narrator.
type GeminiConfig struct {
	Model string `yaml:"model"`
}

// Config holds application configuration.
type Config struct {
	Env    string       `yaml:"env"` // deployment name used in SSM parameter paths
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Blobs  BlobConfig   `yaml:"blobs"`
	Video  VideoConfig  `yaml:"video"`
	Gemini GeminiConfig `yaml:"gemini"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Env:    "prod",
		Server: ServerConfig{Port: 8080},
		Store: StoreConfig{
			Backend:    StoreSQLite,
			SQLitePath: defaultDataPath("sessions.db"),
		},
		Blobs: BlobConfig{
			Backend:       BlobsDir,
			Dir:           defaultDataPath("photos"),
			PresignExpiry: 15 * time.Minute,
		},
		Video: VideoConfig{
			Service:      "kling",
			PollInterval: 10 * time.Second,
			MaxAttempts:  30,
			Backoff:      1.0,
			MaxInterval:  time.Minute,
		},
	}
}

// Load reads the config file at the default location (if any) and applies
// environment overrides.
func Load() (*Config, error) {
	return LoadFile(getConfigPath())
}

// LoadFile reads the config file at path and applies environment overrides.
// A missing file is not an error; defaults are used instead.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadFromEnv() {
	setString(&c.Env, "SWIPE_ENV")
	setInt(&c.Server.Port, "SWIPE_PORT")
	setString(&c.Server.StaticDir, "SWIPE_STATIC_DIR")

	setString(&c.Store.Backend, "SWIPE_STORE")
	setString(&c.Store.SQLitePath, "SWIPE_SQLITE_PATH")
	setString(&c.Store.DynamoTable, "DYNAMO_TABLE_NAME")

	setString(&c.Blobs.Backend, "SWIPE_BLOBS")
	setString(&c.Blobs.Dir, "SWIPE_BLOB_DIR")
	setString(&c.Blobs.Bucket, "MEDIA_BUCKET_NAME")

	setString(&c.Video.Service, "VIDEO_SERVICE")
	setDuration(&c.Video.PollInterval, "VIDEO_POLL_INTERVAL")
	setInt(&c.Video.MaxAttempts, "VIDEO_POLL_ATTEMPTS")
	if v := os.Getenv("VIDEO_POLL_BACKOFF"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Video.Backoff = f
		}
	}

	setString(&c.Gemini.Model, "GEMINI_MODEL")
}

// Validate checks enumerated settings and the poll budget.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreSQLite:
	case StoreDynamo:
		if c.Store.DynamoTable == "" {
			return fmt.Errorf("store backend %q requires dynamo_table (or DYNAMO_TABLE_NAME)", StoreDynamo)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}

	switch c.Blobs.Backend {
	case BlobsDir:
	case BlobsS3:
		if c.Blobs.Bucket == "" {
			return fmt.Errorf("blob backend %q requires bucket (or MEDIA_BUCKET_NAME)", BlobsS3)
		}
	default:
		return fmt.Errorf("unknown blob backend %q", c.Blobs.Backend)
	}

	if c.Video.MaxAttempts < 1 {
		return fmt.Errorf("video.max_attempts must be at least 1, got %d", c.Video.MaxAttempts)
	}
	if c.Video.PollInterval < 0 || c.Video.Backoff < 1 {
		return fmt.Errorf("video poll interval must be non-negative and backoff at least 1")
	}
	return nil
}

// BaseURL returns the configured endpoint override for a video service, or "".
func (c *Config) BaseURL(service string) string {
	if c.Video.BaseURLs == nil {
		return ""
	}
	return c.Video.BaseURLs[service]
}

// StoreLocation names where sessions live, for startup logging.
func (c *Config) StoreLocation() string {
	switch c.Store.Backend {
	case StoreSQLite:
		return c.Store.SQLitePath
	case StoreDynamo:
		return c.Store.DynamoTable
	}
	return "in-process"
}

// BlobLocation names where photos live, for startup logging.
func (c *Config) BlobLocation() string {
	if c.Blobs.Backend == BlobsS3 {
		return "s3://" + c.Blobs.Bucket
	}
	return c.Blobs.Dir
}

// getConfigPath returns the path to the config file.
// Priority: $SWIPE_CONFIG > ~/.config/swipe-story/config.yaml
func getConfigPath() string {
	if configPath := os.Getenv("SWIPE_CONFIG"); configPath != "" {
		return configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "swipe-story", "config.yaml")
}

func defaultDataPath(name string) string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "swipe-story", name)
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, env string) {
	if v := os.Getenv(env); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
