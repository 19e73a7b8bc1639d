package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TFMV/forcegraph/server"
)

type serveOpts struct {
	layoutFlags
	input   string
	port    int
	noCache bool
}

func (c *CLI) serveCommand() *cobra.Command {
	opts := &serveOpts{}

	cmd := &cobra.Command{
		Use:   "serve [links-file]",
		Short: "Serve a live, draggable layout over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.input = args[0]
			}
			cfg := c.Config()
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = opts.port
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			return c.runServe(cmd, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "listen port (default from config, 8080)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "do not read or write the layout cache")

	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, opts *serveOpts) error {
	ctx := cmd.Context()
	cfg := c.Config()

	links, err := c.loadLinks(opts.input)
	if err != nil {
		return err
	}

	lc := c.openCache(ctx, opts.noCache)
	defer lc.Close()

	srv, err := server.New(server.Options{
		Port:     cfg.Server.Port,
		Links:    links,
		Graph:    cfg.GraphOptions(),
		Physics:  cfg.PhysicsConfig(),
		Cache:    lc,
		CacheTTL: cfg.Cache.TTL,
		Logger:   c.Logger,
	})
	if err != nil {
		return err
	}
	c.Logger.Info("Open the layout in a browser", "url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port))
	return srv.Start(ctx)
}
