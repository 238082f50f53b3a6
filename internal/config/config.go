// Package config loads the arbor.yaml file used by the command line tools.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the file looked up when no --config flag is given.
const DefaultPath = "arbor.yaml"

// Store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config is the root of arbor.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Templates TemplatesConfig `yaml:"templates"`
	Bus       BusConfig       `yaml:"bus"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Metrics         bool          `yaml:"metrics"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Dir     string      `yaml:"dir"`
	Redis   RedisConfig `yaml:"redis"`
	// EncryptionKey is a hex encoded 32 byte AES key. Empty disables encryption.
	EncryptionKey string   `yaml:"encryption_key"`
	MaskProps     []string `yaml:"mask_props"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
	// Bridge relays every document's bus over redis pub/sub.
	Bridge bool `yaml:"bridge"`
}

// TemplatesConfig points at a loam repository of templates.
type TemplatesConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// BusConfig tunes the event bus.
type BusConfig struct {
	MailboxWarning int `yaml:"mailbox_warning"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 5 * time.Second,
			Metrics:         true,
		},
		Store: StoreConfig{
			Backend: StoreMemory,
			Dir:     ".arbor/documents",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "arbor:",
			},
		},
		Bus: BusConfig{MailboxWarning: 1024},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks the values that cannot be defaulted.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case StoreMemory, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown store backend %q (want memory, file or redis)", c.Store.Backend)
	}
	if c.Store.Backend == StoreFile && c.Store.Dir == "" {
		return errors.New("store.dir is required for the file backend")
	}
	if c.Store.Redis.Bridge && c.Store.Backend != StoreRedis {
		return errors.New("store.redis.bridge requires the redis backend")
	}
	if c.Store.EncryptionKey != "" {
		if _, err := c.Key(); err != nil {
			return err
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Key decodes the encryption key.
func (c Config) Key() ([]byte, error) {
	key, err := hex.DecodeString(c.Store.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("store.encryption_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("store.encryption_key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Level parses the log level.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.Log.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
