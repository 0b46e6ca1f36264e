package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// FileEnv names the environment variable pointing at an optional config file.
const FileEnv = "SHELF_CONFIG"

// Config holds all application configuration.
type Config struct {
	Shelf     ShelfConfig     `envconfig:"SHELF" yaml:"shelf" toml:"shelf"`
	Server    ServerConfig    `envconfig:"SERVER" yaml:"server" toml:"server"`
	Bridge    BridgeConfig    `envconfig:"BRIDGE" yaml:"bridge" toml:"bridge"`
	Sandbox   SandboxConfig   `envconfig:"SANDBOX" yaml:"sandbox" toml:"sandbox"`
	HTTP      HTTPConfig      `envconfig:"HTTP" yaml:"http" toml:"http"`
	Install   InstallConfig   `envconfig:"INSTALL" yaml:"install" toml:"install"`
	Store     StoreConfig     `envconfig:"STORE" yaml:"store" toml:"store"`
	Logging   LogConfig       `envconfig:"LOG" yaml:"log" toml:"log"`
	RateLimit RateLimitConfig `envconfig:"RATE_LIMIT" yaml:"rate_limit" toml:"rate_limit"`
}

// ShelfConfig holds the data directory layout root.
type ShelfConfig struct {
	DataDir string `envconfig:"DATA_DIR" yaml:"data_dir" toml:"data_dir"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string   `envconfig:"PORT" yaml:"port" toml:"port"`
	Host            string   `envconfig:"HOST" yaml:"host" toml:"host"`
	AllowOrigins    []string `envconfig:"ALLOW_ORIGINS" yaml:"allow_origins" toml:"allow_origins"`
	ShutdownTimeout Duration `envconfig:"SHUTDOWN_TIMEOUT" yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// BridgeConfig bounds host calls into guest code.
type BridgeConfig struct {
	Timeout Duration `envconfig:"TIMEOUT" yaml:"timeout" toml:"timeout"`
}

// SandboxConfig holds script context limits.
type SandboxConfig struct {
	LoadTimeout  Duration `envconfig:"LOAD_TIMEOUT" yaml:"load_timeout" toml:"load_timeout"`
	ExecTimeout  Duration `envconfig:"EXEC_TIMEOUT" yaml:"exec_timeout" toml:"exec_timeout"`
	MaxCallStack int      `envconfig:"MAX_CALL_STACK" yaml:"max_call_stack" toml:"max_call_stack"`
	PoolSize     int      `envconfig:"POOL_SIZE" yaml:"pool_size" toml:"pool_size"`
}

// HTTPConfig holds the outbound client configuration used by fetch and installs.
type HTTPConfig struct {
	Timeout      Duration `envconfig:"TIMEOUT" yaml:"timeout" toml:"timeout"`
	RetryMax     int      `envconfig:"RETRY_MAX" yaml:"retry_max" toml:"retry_max"`
	RateLimit    float64  `envconfig:"RATE_LIMIT" yaml:"rate_limit" toml:"rate_limit"`
	UserAgent    string   `envconfig:"USER_AGENT" yaml:"user_agent" toml:"user_agent"`
	MaxBodyBytes int64    `envconfig:"MAX_BODY_BYTES" yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// InstallConfig holds package installation limits.
type InstallConfig struct {
	Concurrency     int      `envconfig:"CONCURRENCY" yaml:"concurrency" toml:"concurrency"`
	MaxArchiveBytes int64    `envconfig:"MAX_ARCHIVE_BYTES" yaml:"max_archive_bytes" toml:"max_archive_bytes"`
	LoginTimeout    Duration `envconfig:"LOGIN_TIMEOUT" yaml:"login_timeout" toml:"login_timeout"`
}

// StoreConfig selects the preferences backend and keychain secret.
type StoreConfig struct {
	Backend        string `envconfig:"BACKEND" yaml:"backend" toml:"backend"` // memory, file, redis
	RedisAddr      string `envconfig:"REDIS_ADDR" yaml:"redis_addr" toml:"redis_addr"`
	RedisPassword  string `envconfig:"REDIS_PASSWORD" yaml:"redis_password" toml:"redis_password"`
	RedisDB        int    `envconfig:"REDIS_DB" yaml:"redis_db" toml:"redis_db"`
	KeychainSecret string `envconfig:"KEYCHAIN_SECRET" yaml:"keychain_secret" toml:"keychain_secret"`
	PurgeOnRemove  bool   `envconfig:"PURGE_ON_REMOVE" yaml:"purge_on_remove" toml:"purge_on_remove"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" yaml:"level" toml:"level"`
	Development bool   `envconfig:"DEV" yaml:"dev" toml:"dev"`
}

// RateLimitConfig holds API rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RPS" yaml:"rps" toml:"rps"`
	Burst             int  `envconfig:"BURST" yaml:"burst" toml:"burst"`
	Enabled           bool `envconfig:"ENABLED" yaml:"enabled" toml:"enabled"`
}

// Duration is a time.Duration that decodes from strings like "30s" in
// env vars, YAML and TOML alike.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the standard library duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load builds configuration from defaults, then the optional file named by
// SHELF_CONFIG, then environment variables. Later sources win.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.MergeFile(path); err != nil {
			return nil, err
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, cfg.Validate()
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// MergeFile overlays a YAML or TOML file onto cfg. Keys absent from the
// file keep their current values.
func (c *Config) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	default:
		return fmt.Errorf("unsupported config file type: %s", path)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate rejects values no component can work with.
func (c *Config) Validate() error {
	switch {
	case c.Shelf.DataDir == "":
		return fmt.Errorf("config: data dir is required")
	case c.Bridge.Timeout <= 0:
		return fmt.Errorf("config: bridge timeout must be positive")
	case c.Install.Concurrency <= 0:
		return fmt.Errorf("config: install concurrency must be positive")
	}
	switch c.Store.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Shelf: ShelfConfig{
			DataDir: defaultDataDir(),
		},
		Server: ServerConfig{
			Port:            "8000",
			Host:            "127.0.0.1",
			AllowOrigins:    []string{"*"},
			ShutdownTimeout: Duration(10 * time.Second),
		},
		Bridge: BridgeConfig{
			Timeout: Duration(30 * time.Second),
		},
		Sandbox: SandboxConfig{
			LoadTimeout:  Duration(5 * time.Second),
			ExecTimeout:  Duration(5 * time.Second),
			MaxCallStack: 1024,
			PoolSize:     0,
		},
		HTTP: HTTPConfig{
			Timeout:      Duration(30 * time.Second),
			RetryMax:     2,
			RateLimit:    20,
			UserAgent:    "Shelf/1.0",
			MaxBodyBytes: 32 << 20,
		},
		Install: InstallConfig{
			Concurrency:     4,
			MaxArchiveBytes: 64 << 20,
			LoginTimeout:    Duration(30 * time.Second),
		},
		Store: StoreConfig{
			Backend: "file",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "shelf")
	}
	return filepath.Join(os.TempDir(), "shelf")
}
