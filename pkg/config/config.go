// Package config loads the wkimage configuration file.
//
// The file is TOML (config.toml) or YAML (config.yaml, config.yml) and lives
// in $XDG_CONFIG_HOME/wkimage or ~/.config/wkimage. Every field is optional;
// values not present keep their defaults. Command-line flags are applied on
// top by the CLI.
//
//	library = "/usr/local/lib/libwkhtmltox.so"
//
//	[image]
//	fmt = "png"
//	screenWidth = 1280
//
//	[image.loadPage]
//	jsdelay = 500
//
//	[cache]
//	backend = "redis"
//	ttl = "12h"
//
//	[cache.redis]
//	addr = "localhost:6379"
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/wkimage/pkg/errors"
	"github.com/matzehuels/wkimage/pkg/settings"
)

// AppName names the configuration and cache directories.
const AppName = "wkimage"

// Cache backends.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

var validBackends = map[string]bool{
	BackendNone:  true,
	BackendFile:  true,
	BackendRedis: true,
	BackendMongo: true,
}

// Config is the full configuration file.
type Config struct {
	// Library is the path of libwkhtmltox; empty uses the platform default.
	Library     string         `toml:"library" yaml:"library"`
	UseGraphics bool           `toml:"useGraphics" yaml:"useGraphics"`
	LogLevel    string         `toml:"logLevel" yaml:"logLevel"`
	Image       settings.Image `toml:"image" yaml:"image"`
	Cache       Cache          `toml:"cache" yaml:"cache"`
	Server      Server         `toml:"server" yaml:"server"`
}

// Cache selects and configures the render cache.
type Cache struct {
	Backend string        `toml:"backend" yaml:"backend"`
	Dir     string        `toml:"dir" yaml:"dir"`
	TTL     time.Duration `toml:"ttl" yaml:"ttl"`
	Redis   Redis         `toml:"redis" yaml:"redis"`
	Mongo   Mongo         `toml:"mongo" yaml:"mongo"`
}

// Redis configures the Redis backend.
type Redis struct {
	Addr     string `toml:"addr" yaml:"addr"`
	Password string `toml:"password" yaml:"password"`
	DB       int    `toml:"db" yaml:"db"`
	Prefix   string `toml:"prefix" yaml:"prefix"`
}

// Mongo configures the MongoDB backend.
type Mongo struct {
	URI        string `toml:"uri" yaml:"uri"`
	Database   string `toml:"database" yaml:"database"`
	Collection string `toml:"collection" yaml:"collection"`
}

// Server configures `wkimage serve`.
type Server struct {
	Addr           string        `toml:"addr" yaml:"addr"`
	MaxBodyBytes   int64         `toml:"maxBodyBytes" yaml:"maxBodyBytes"`
	RequestTimeout time.Duration `toml:"requestTimeout" yaml:"requestTimeout"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Image:    *settings.Default(),
		Cache: Cache{
			Backend: BackendFile,
			TTL:     24 * time.Hour,
			Redis:   Redis{Addr: "localhost:6379", Prefix: "wkimage:"},
			Mongo:   Mongo{URI: "mongodb://localhost:27017", Database: AppName, Collection: "renders"},
		},
		Server: Server{
			Addr:           ":8080",
			MaxBodyBytes:   4 << 20,
			RequestTimeout: 2 * time.Minute,
		},
	}
}

// Load reads the file at path over the defaults. The format follows the
// extension: .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config")
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", filepath.Base(path))
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse %s", filepath.Base(path))
		}
	default:
		return nil, errors.New(errors.ErrCodeInvalidConfig, "unsupported config format %q (use .toml, .yaml or .yml)", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads the first config file found in Dir, or returns the
// defaults when there is none. The returned path is empty in that case.
func LoadDefault() (*Config, string, error) {
	dir, err := Dir()
	if err != nil {
		return Default(), "", nil
	}
	for _, name := range []string{"config.toml", "config.yaml", "config.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, path, err
		}
	}
	return Default(), "", nil
}

// Validate checks values a file can get wrong.
func (c *Config) Validate() error {
	if !validBackends[c.Cache.Backend] {
		return errors.New(errors.ErrCodeInvalidConfig, "invalid cache backend %q (must be one of: none, file, redis, mongo)", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "cache ttl cannot be negative")
	}
	if c.Server.MaxBodyBytes < 0 {
		return errors.New(errors.ErrCodeInvalidConfig, "server maxBodyBytes cannot be negative")
	}
	return c.Image.Validate()
}

// CacheDir returns the file cache directory: the configured one, or
// $XDG_CACHE_HOME/wkimage, or ~/.cache/wkimage.
func (c *Config) CacheDir() (string, error) {
	if c.Cache.Dir != "" {
		return c.Cache.Dir, nil
	}
	return DefaultCacheDir()
}

// Dir returns the configuration directory.
func Dir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppName), nil
}

// DefaultCacheDir returns the default file cache directory.
func DefaultCacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", AppName), nil
}
