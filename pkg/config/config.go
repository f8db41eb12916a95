// Package config loads the daemon and CLI configuration from YAML and
// applies command-line overrides on top.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dfchart/pkg/log"
	"dfchart/pkg/render"
)

const (
	DefaultListen        = ":8080"
	DefaultStorePath     = "/var/lib/dfmon/df.sqlite3"
	DefaultCacheDir      = "/tmp"
	DefaultJSDir         = "/scripts"
	DefaultPruneInterval = 10 * time.Minute
)

// Config is the full configuration of the chart service.
type Config struct {
	Listen string       `yaml:"listen"`
	Log    log.Config   `yaml:"log"`
	Store  StoreConfig  `yaml:"store"`
	Cache  CacheConfig  `yaml:"cache"`
	Render RenderConfig `yaml:"render"`
}

// StoreConfig locates the sample database.
type StoreConfig struct {
	Path string `yaml:"path"`
	// Migrate applies pending schema migrations on open.
	Migrate bool `yaml:"migrate"`
	// TraceSQL logs every statement at debug level.
	TraceSQL bool `yaml:"trace_sql"`
}

// CacheConfig controls the artifact directory.
type CacheConfig struct {
	Dir      string `yaml:"dir"`
	Coalesce bool   `yaml:"coalesce"`
	// MaxAge of zero keeps artifacts forever.
	MaxAge        time.Duration `yaml:"max_age"`
	PruneInterval time.Duration `yaml:"prune_interval"`
}

// RenderConfig selects the rendering engine and its terminal.
type RenderConfig struct {
	Binary string `yaml:"binary"`
	Format string `yaml:"format"`
	JSDir  string `yaml:"js_dir"`
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen: DefaultListen,
		Log: log.Config{
			Level:  "info",
			Format: log.FormatConsole,
		},
		Store: StoreConfig{
			Path:    DefaultStorePath,
			Migrate: true,
		},
		Cache: CacheConfig{
			Dir:           DefaultCacheDir,
			PruneInterval: DefaultPruneInterval,
		},
		Render: RenderConfig{
			Binary: render.DefaultBinary,
			Format: render.FormatCanvas.Name,
			JSDir:  DefaultJSDir,
		},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return cfg, nil
}

// RenderFormat returns the configured artifact format.
func (c *Config) RenderFormat() (render.Format, error) {
	return render.LookupFormat(c.Render.Format)
}

// TerminalOptions returns the terminal settings of the render section.
func (c *Config) TerminalOptions() render.TerminalOptions {
	return render.TerminalOptions{
		JSDir:  c.Render.JSDir,
		Width:  c.Render.Width,
		Height: c.Render.Height,
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "", log.FormatConsole, log.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q", c.Log.Format))
	}

	if strings.TrimSpace(c.Store.Path) == "" {
		errs = append(errs, errors.New("store.path must not be empty"))
	}

	if c.Cache.MaxAge < 0 {
		errs = append(errs, fmt.Errorf("cache.max_age %s must not be negative", c.Cache.MaxAge))
	}
	if c.Cache.MaxAge > 0 && c.Cache.PruneInterval <= 0 {
		errs = append(errs, fmt.Errorf("cache.prune_interval %s must be positive when max_age is set",
			c.Cache.PruneInterval))
	}

	if _, err := c.RenderFormat(); err != nil {
		errs = append(errs, err)
	}
	if c.Render.Width < 0 || c.Render.Height < 0 {
		errs = append(errs, fmt.Errorf("render size %dx%d must not be negative", c.Render.Width, c.Render.Height))
	}

	return errors.Join(errs...)
}

// Overrides holds the command-line flags that take precedence over the file.
type Overrides struct {
	fs *flag.FlagSet

	listen    string
	logLevel  string
	logFormat string
	storePath string
	cacheDir  string
	coalesce  bool
	maxAge    time.Duration
	format    string
	binary    string
	jsDir     string
}

// RegisterFlags defines the override flags on fs.
func RegisterFlags(fs *flag.FlagSet) *Overrides {
	o := &Overrides{fs: fs}
	fs.StringVar(&o.listen, "listen", DefaultListen, "Address to listen on")
	fs.StringVar(&o.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "log-format", log.FormatConsole, "Log format (console, json)")
	fs.StringVar(&o.storePath, "db", DefaultStorePath, "Sample database path")
	fs.StringVar(&o.cacheDir, "cache-dir", DefaultCacheDir, "Artifact cache directory")
	fs.BoolVar(&o.coalesce, "coalesce", false, "Share one render between concurrent misses")
	fs.DurationVar(&o.maxAge, "cache-max-age", 0, "Remove artifacts older than this (0 keeps them)")
	fs.StringVar(&o.format, "format", render.FormatCanvas.Name, "Artifact format (canvas, svg, png)")
	fs.StringVar(&o.binary, "gnuplot", render.DefaultBinary, "Rendering engine executable")
	fs.StringVar(&o.jsDir, "js-dir", DefaultJSDir, "Script directory referenced by canvas pages")
	return o
}

// Apply copies every flag set explicitly on the command line into cfg.
func (o *Overrides) Apply(cfg *Config) {
	o.fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = o.listen
		case "log-level":
			cfg.Log.Level = o.logLevel
		case "log-format":
			cfg.Log.Format = o.logFormat
		case "db":
			cfg.Store.Path = o.storePath
		case "cache-dir":
			cfg.Cache.Dir = o.cacheDir
		case "coalesce":
			cfg.Cache.Coalesce = o.coalesce
		case "cache-max-age":
			cfg.Cache.MaxAge = o.maxAge
		case "format":
			cfg.Render.Format = o.format
		case "gnuplot":
			cfg.Render.Binary = o.binary
		case "js-dir":
			cfg.Render.JSDir = o.jsDir
		}
	})
}
