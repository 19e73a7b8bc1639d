// Package cli implements the forcegraph command-line interface.
package cli

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/TFMV/forcegraph/cache"
	"github.com/TFMV/forcegraph/config"
	"github.com/TFMV/forcegraph/graph"
	"github.com/TFMV/forcegraph/ingest"
	"github.com/TFMV/forcegraph/models"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Out    io.Writer

	configPath string
	verbose    bool
	cfg        *config.Config
}

// New creates a CLI writing results to out and logs to logw.
func New(out, logw io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(logw, level),
		Out:    out,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// Config returns the configuration loaded for the running command.
func (c *CLI) Config() *config.Config {
	if c.cfg == nil {
		return config.Default()
	}
	return c.cfg
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "forcegraph",
		Short: "forcegraph lays out link graphs with a force simulation",
		Long: `forcegraph turns a list of source/target links into a force-directed
layout. It renders static documents or serves a live, draggable view.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.verbose {
				c.SetLogLevel(LogDebug)
			}
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.Logger.Debug("Configuration loaded", "path", c.configPath, "cache", cfg.Cache.Backend)
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/forcegraph/config.toml)")

	root.AddCommand(c.renderCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.nodesCommand())

	return root
}

// Execute runs the command tree with ctx.
func (c *CLI) Execute(ctx context.Context, args []string) error {
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(c.Out)
	return root.ExecuteContext(ctx)
}

// loadLinks reads path, or the configured links file when path is empty.
func (c *CLI) loadLinks(path string) ([]models.Link, error) {
	if path == "" {
		path = c.Config().Graph.Links
	}
	links, err := ingest.Load(path)
	if err != nil {
		return nil, err
	}
	if path == "" {
		c.Logger.Debug("No input given, using the built-in ring")
	}
	return links, nil
}

func (c *CLI) buildGraph(path string) ([]models.Link, *models.Graph, error) {
	links, err := c.loadLinks(path)
	if err != nil {
		return nil, nil, err
	}
	g, err := graph.Build(links, c.Config().GraphOptions())
	if err != nil {
		return nil, nil, err
	}
	return links, g, nil
}

// openCache opens the configured layout cache. noCache forces the null cache.
func (c *CLI) openCache(ctx context.Context, noCache bool) cache.Cache {
	cfg := c.Config()
	if noCache {
		return cache.NewNullCache()
	}
	lc, err := cache.Open(ctx, cfg.Cache.Backend, cfg.Cache.Dir, cfg.Cache.RedisURL)
	if err != nil {
		c.Logger.Warn("Layout cache disabled", "backend", cfg.Cache.Backend, "err", err)
		return cache.NewNullCache()
	}
	return lc
}
