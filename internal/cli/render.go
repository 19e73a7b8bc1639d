package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TFMV/forcegraph/cache"
	"github.com/TFMV/forcegraph/config"
	"github.com/TFMV/forcegraph/physics"
	"github.com/TFMV/forcegraph/render"
)

// layoutFlags override the layout settings of the loaded configuration.
type layoutFlags struct {
	width        float64
	height       float64
	linkDistance float64
	placement    string
	seed         int64
	iterations   int
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.width, "width", 0, "canvas width")
	cmd.Flags().Float64Var(&f.height, "height", 0, "canvas height")
	cmd.Flags().Float64Var(&f.linkDistance, "link-distance", 0, "target edge length")
	cmd.Flags().StringVar(&f.placement, "placement", "", "initial placement: noise or ring")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "noise seed")
	cmd.Flags().IntVar(&f.iterations, "iterations", 0, "maximum simulation steps (0 = until cool)")
}

// apply copies every flag the user set onto cfg and revalidates it.
func (f *layoutFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("width") {
		cfg.Canvas.Width = f.width
	}
	if flags.Changed("height") {
		cfg.Canvas.Height = f.height
	}
	if flags.Changed("link-distance") {
		cfg.Canvas.LinkDistance = f.linkDistance
	}
	if flags.Changed("placement") {
		cfg.Physics.Placement = f.placement
	}
	if flags.Changed("seed") {
		cfg.Physics.Seed = f.seed
	}
	if flags.Changed("iterations") {
		cfg.Physics.Iterations = f.iterations
	}
	return cfg.Validate()
}

type renderOpts struct {
	layoutFlags
	input   string
	output  string
	format  string
	noCache bool
}

func (c *CLI) renderCommand() *cobra.Command {
	opts := &renderOpts{}

	cmd := &cobra.Command{
		Use:   "render [links-file]",
		Short: "Settle a layout and write it as svg, ascii, json, dot or png",
		Long: `Render loads links, runs the simulation until it cools (or the iteration
cap is reached) and writes the final frame. Without an input file the
built-in Chord ring is rendered.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.input = args[0]
			}
			if err := opts.apply(cmd, c.Config()); err != nil {
				return err
			}
			return c.runRender(cmd, opts)
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", render.FormatSVG, "output format: svg, ascii, json, dot, png")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "ignore and do not update the layout cache")

	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, opts *renderOpts) error {
	ctx := cmd.Context()
	cfg := c.Config()
	prog := newProgress(c.Logger)

	if _, err := render.GetRenderer(opts.format); err != nil {
		return err
	}

	links, g, err := c.buildGraph(opts.input)
	if err != nil {
		return err
	}
	c.Logger.Debug("Graph built", "nodes", len(g.Order), "edges", len(g.Edges))

	lc := c.openCache(ctx, opts.noCache)
	defer lc.Close()

	key := cache.LayoutKey(links, cfg.LayoutKeyOpts())
	if warm, err := cache.LoadPositions(ctx, lc, key, g); err != nil {
		c.Logger.Warn("Layout cache read failed", "err", err)
	} else if warm {
		c.Logger.Debug("Starting from cached layout")
	}

	engine := physics.NewForceLayout(cfg.PhysicsConfig())
	out, err := render.Generate(ctx, g, engine, cfg.Physics.Iterations, render.NewDefaultOptions(opts.format))
	if err != nil {
		return err
	}

	if err := cache.SavePositions(ctx, lc, key, g, cfg.Cache.TTL); err != nil {
		c.Logger.Warn("Layout cache write failed", "err", err)
	}

	if opts.output == "" || opts.output == "-" {
		_, err = c.Out.Write(out)
		return err
	}
	if err := os.WriteFile(opts.output, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	prog.done("Rendered", "file", opts.output, "format", opts.format, "nodes", len(g.Order))
	return nil
}
