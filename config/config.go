// Package config loads forcegraph settings. Each layer overrides the one
// before it: built-in defaults, the TOML file, a .env file, FORCEGRAPH_*
// environment variables and finally command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/TFMV/forcegraph/cache"
	"github.com/TFMV/forcegraph/errors"
	"github.com/TFMV/forcegraph/graph"
	"github.com/TFMV/forcegraph/models"
	"github.com/TFMV/forcegraph/physics"
)

// EnvPrefix prefixes every environment variable, e.g. FORCEGRAPH_SERVER_PORT.
const EnvPrefix = "forcegraph"

// Config holds forcegraph configuration.
type Config struct {
	Canvas  CanvasConfig  `toml:"canvas" envconfig:"canvas"`
	Physics PhysicsConfig `toml:"physics" envconfig:"physics"`
	Server  ServerConfig  `toml:"server" envconfig:"server"`
	Cache   CacheConfig   `toml:"cache" envconfig:"cache"`
	Graph   GraphConfig   `toml:"graph" envconfig:"graph"`
}

// CanvasConfig sizes the drawing area.
type CanvasConfig struct {
	Width        float64 `toml:"width" envconfig:"width"`
	Height       float64 `toml:"height" envconfig:"height"`
	LinkDistance float64 `toml:"link_distance" envconfig:"link_distance"`
}

// PhysicsConfig controls the simulation.
type PhysicsConfig struct {
	Placement    string        `toml:"placement" envconfig:"placement"` // "noise" or "ring"
	Seed         int64         `toml:"seed" envconfig:"seed"`
	Iterations   int           `toml:"iterations" envconfig:"iterations"` // cap for static renders, 0 = until cool
	TickInterval time.Duration `toml:"tick_interval" envconfig:"tick_interval"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Port int `toml:"port" envconfig:"port"`
}

// CacheConfig selects the layout cache.
type CacheConfig struct {
	Backend  string        `toml:"backend" envconfig:"backend"` // "file", "redis" or "none"
	Dir      string        `toml:"dir" envconfig:"dir"`
	RedisURL string        `toml:"redis_url" envconfig:"redis_url"`
	TTL      time.Duration `toml:"ttl" envconfig:"ttl"`
}

// GraphConfig controls how links become a graph.
type GraphConfig struct {
	Links      string `toml:"links" envconfig:"links"` // input file, empty = built-in ring
	SelfLoops  string `toml:"self_loops" envconfig:"self_loops"`
	Duplicates string `toml:"duplicates" envconfig:"duplicates"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Canvas: CanvasConfig{
			Width:        models.DefaultWidth,
			Height:       models.DefaultHeight,
			LinkDistance: models.DefaultLinkDistance,
		},
		Physics: PhysicsConfig{
			Placement:    string(physics.PlacementNoise),
			Seed:         1,
			Iterations:   1000,
			TickInterval: time.Second / 60,
		},
		Server: ServerConfig{Port: 8080},
		Cache: CacheConfig{
			Backend: cache.BackendFile,
			TTL:     7 * 24 * time.Hour,
		},
		Graph: GraphConfig{
			SelfLoops:  string(graph.PolicyKeep),
			Duplicates: string(graph.PolicyKeep),
		},
	}
}

// Dir returns the forcegraph config directory.
func Dir() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "forcegraph")
}

// DefaultPath returns the config file read when no path is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load builds the configuration from defaults, the TOML file at path, .env
// and the environment. An explicit path must exist; when path is empty the
// default file is read only if present.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse config %s", path)
		}
	} else if explicit {
		return nil, errors.Wrap(errors.ErrCodeNotFound, err, "config %s", path)
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "error processing environment configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerated values.
func (c *Config) Validate() error {
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "canvas must be positive, got %gx%g", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Canvas.LinkDistance <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "link distance must be positive, got %g", c.Canvas.LinkDistance)
	}
	if _, err := physics.ParsePlacement(c.Physics.Placement); err != nil {
		return err
	}
	if c.Physics.Iterations < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "iterations must not be negative")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.New(errors.ErrCodeInvalidInput, "invalid port %d", c.Server.Port)
	}
	switch c.Cache.Backend {
	case "", cache.BackendNone, cache.BackendFile, cache.BackendRedis:
	default:
		return errors.New(errors.ErrCodeInvalidInput, "unknown cache backend %q", c.Cache.Backend)
	}
	if _, err := graph.ParsePolicy(c.Graph.SelfLoops); err != nil {
		return err
	}
	if _, err := graph.ParsePolicy(c.Graph.Duplicates); err != nil {
		return err
	}
	return nil
}

// GraphOptions returns the builder options. Call after Validate.
func (c *Config) GraphOptions() graph.Options {
	selfLoops, _ := graph.ParsePolicy(c.Graph.SelfLoops)
	duplicates, _ := graph.ParsePolicy(c.Graph.Duplicates)
	return graph.Options{
		Name:         "links",
		Width:        c.Canvas.Width,
		Height:       c.Canvas.Height,
		LinkDistance: c.Canvas.LinkDistance,
		SelfLoops:    selfLoops,
		Duplicates:   duplicates,
	}
}

// PhysicsConfig returns the engine configuration. Call after Validate.
func (c *Config) PhysicsConfig() physics.Config {
	placement, _ := physics.ParsePlacement(c.Physics.Placement)
	pc := physics.DefaultConfig()
	pc.Placement = placement
	pc.Seed = c.Physics.Seed
	if c.Physics.TickInterval > 0 {
		pc.TickInterval = c.Physics.TickInterval
	}
	return pc
}

// LayoutKeyOpts returns the settings that distinguish cached layouts.
func (c *Config) LayoutKeyOpts() cache.LayoutKeyOpts {
	return cache.LayoutKeyOpts{
		Width:        c.Canvas.Width,
		Height:       c.Canvas.Height,
		LinkDistance: c.Canvas.LinkDistance,
		Placement:    c.Physics.Placement,
		Seed:         c.Physics.Seed,
	}
}
