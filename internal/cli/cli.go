package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/wkimage/pkg/buildinfo"
	"github.com/matzehuels/wkimage/pkg/cache"
	"github.com/matzehuels/wkimage/pkg/config"
	"github.com/matzehuels/wkimage/pkg/converter"
	"github.com/matzehuels/wkimage/pkg/native"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = config.AppName

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// EngineOpener loads the native engine from a library path.
type EngineOpener func(path string) (native.Engine, error)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// OpenEngine loads the engine. It defaults to the dynamic library loader.
	OpenEngine EngineOpener

	mu       sync.Mutex
	engine   native.Engine
	runtime  *converter.Runtime
	levelSet bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:     newLogger(w, level),
		OpenEngine: openLibrary,
	}
}

// SetLogLevel updates the logger's level. An explicit level takes
// precedence over the configuration file's logLevel.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
	c.levelSet = true
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "wkimage renders HTML pages to images",
		Long:         `wkimage renders HTML documents and URLs to PNG, JPEG, BMP or SVG images using the wkhtmltox engine, from the command line or over HTTP.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().String("config", "", "config file (default $XDG_CONFIG_HOME/wkimage/config.toml)")
	root.PersistentFlags().String("library", "", "path to libwkhtmltox (default $"+native.LibraryEnv+")")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.settingsCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// Shutdown deinitializes the engine, if it was started, and unloads the
// library. main calls it once on exit.
func (c *CLI) Shutdown() error {
	c.mu.Lock()
	rt, engine := c.runtime, c.engine
	c.mu.Unlock()

	if rt == nil {
		return nil
	}
	err := rt.Shutdown()
	if closer, ok := engine.(io.Closer); ok {
		if cerr := closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// =============================================================================
// Config & Runtime
// =============================================================================

// loadConfig reads --config, or the default config file when the flag is
// empty, and applies --library.
func (c *CLI) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, path, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	if cfg.LogLevel != "" && !c.levelSet {
		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("config logLevel: %w", err)
		}
		c.Logger.SetLevel(level)
	}
	if path != "" {
		c.Logger.Debug("loaded config", "path", path)
	}

	if lib, _ := cmd.Flags().GetString("library"); lib != "" {
		cfg.Library = lib
	}
	return cfg, nil
}

// runtimeFor returns the process runtime, loading the engine on first use.
func (c *CLI) runtimeFor(cfg *config.Config) (*converter.Runtime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.runtime != nil {
		return c.runtime, nil
	}

	path := cfg.Library
	if path == "" {
		path = native.LibraryPath()
	}
	engine, err := c.OpenEngine(path)
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("loaded engine", "library", path)

	c.engine = engine
	c.runtime = converter.NewRuntime(engine,
		converter.WithLogger(c.Logger),
		converter.WithUseGraphics(cfg.UseGraphics),
	)
	return c.runtime, nil
}

func openLibrary(path string) (native.Engine, error) {
	lib, err := native.Open(path)
	if err != nil {
		return nil, err
	}
	return lib, nil
}

// =============================================================================
// Cache Factory
// =============================================================================

// newCache builds the configured render cache. A disabled or unreachable
// cache degrades to the null cache.
func (c *CLI) newCache(ctx context.Context, cfg *config.Config, noCache bool) cache.Cache {
	if noCache {
		return cache.NewNullCache()
	}

	switch cfg.Cache.Backend {
	case config.BackendNone:
		return cache.NewNullCache()

	case config.BackendRedis:
		rc := cache.NewRedisCache(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB,
			cache.WithRedisPrefix(cfg.Cache.Redis.Prefix))
		if err := rc.Ping(ctx); err != nil {
			c.Logger.Warn("redis cache unavailable, caching disabled", "addr", cfg.Cache.Redis.Addr, "error", err)
			_ = rc.Close()
			return cache.NewNullCache()
		}
		return rc

	case config.BackendMongo:
		mc, err := cache.OpenMongoCache(ctx, cfg.Cache.Mongo.URI, cfg.Cache.Mongo.Database, cfg.Cache.Mongo.Collection)
		if err != nil {
			c.Logger.Warn("mongo cache unavailable, caching disabled", "uri", cfg.Cache.Mongo.URI, "error", err)
			return cache.NewNullCache()
		}
		return mc
	}

	dir, err := cfg.CacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("file cache unavailable, caching disabled", "dir", dir, "error", err)
		return cache.NewNullCache()
	}
	return fc
}
