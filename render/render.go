package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/goccy/go-graphviz"

	"github.com/TFMV/forcegraph/errors"
	"github.com/TFMV/forcegraph/models"
	"github.com/TFMV/forcegraph/physics"
)

// Output formats.
const (
	FormatSVG   = "svg"
	FormatASCII = "ascii"
	FormatJSON  = "json"
	FormatDOT   = "dot"
	FormatPNG   = "png"
)

// OutputOptions defines rendering configuration options
type OutputOptions struct {
	Format     string  // Output format (svg, ascii, json, dot, png)
	Background string  // Background color
	EdgeColor  string  // Line stroke color
	EdgeWidth  float64 // Line stroke width
	FontSize   float64 // Font size for labels
	ShowLabels bool    // Show node labels
	Timestamp  bool    // Include timestamp in the output
	Palette    []string
}

// Renderer turns a committed frame into an output document.
type Renderer interface {
	Render(frame Frame, options *OutputOptions) ([]byte, error)
	Name() string
	Description() string
}

// DefaultPalette is cycled through by circle id.
var DefaultPalette = []string{
	"#4285F4",
	"#EA4335",
	"#FBBC05",
	"#34A853",
	"#673AB7",
	"#3F51B5",
	"#00BCD4",
	"#009688",
	"#FF5722",
}

// NewDefaultOptions creates a default set of output options
func NewDefaultOptions(format string) *OutputOptions {
	return &OutputOptions{
		Format:     format,
		Background: "#ffffff",
		EdgeColor:  "#999999",
		EdgeWidth:  1.5,
		FontSize:   10,
		ShowLabels: true,
		Timestamp:  false,
		Palette:    DefaultPalette,
	}
}

// GetRenderer returns the appropriate renderer based on format
func GetRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case FormatSVG:
		return &SVGRenderer{}, nil
	case FormatASCII:
		return &ASCIIRenderer{}, nil
	case FormatJSON:
		return &JSONRenderer{}, nil
	case FormatDOT:
		return &DOTRenderer{}, nil
	case FormatPNG:
		return &PNGRenderer{}, nil
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported output format: %s", format)
	}
}

// ContentType returns the MIME type for an output format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case FormatSVG:
		return "image/svg+xml"
	case FormatJSON:
		return "application/json"
	case FormatPNG:
		return "image/png"
	case FormatDOT:
		return "text/vnd.graphviz"
	default:
		return "text/plain; charset=utf-8"
	}
}

// Generate lays out g with engine until it cools, projects the final
// positions onto a fresh scene and renders it.
func Generate(ctx context.Context, g *models.Graph, engine physics.LayoutEngine, maxIterations int, options *OutputOptions) ([]byte, error) {
	renderer, err := GetRenderer(options.Format)
	if err != nil {
		return nil, err
	}

	scene := NewScene(g.Width, g.Height)
	projector, err := NewProjector(g, scene)
	if err != nil {
		return nil, err
	}

	engine.Initialize(g)
	cancel := projector.Attach(engine)
	defer cancel()

	if _, _, err := physics.Settle(ctx, engine, maxIterations); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	projector.Tick(physics.TickEvent{Graph: g})

	return renderer.Render(scene.Frame(), options)
}

func (o *OutputOptions) color(id int) string {
	palette := o.Palette
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	return palette[id%len(palette)]
}

// SVGRenderer outputs SVG format
type SVGRenderer struct{}

// Name returns the name of the renderer
func (r *SVGRenderer) Name() string {
	return "SVG Renderer"
}

// Description returns a description of the renderer
func (r *SVGRenderer) Description() string {
	return "Renders the frame as a standalone SVG document"
}

// Render creates an SVG representation of the frame
func (r *SVGRenderer) Render(frame Frame, options *OutputOptions) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, `<?xml version="1.0" encoding="UTF-8" standalone="no"?>
<svg width="%g" height="%g" viewBox="0 0 %g %g" xmlns="http://www.w3.org/2000/svg">
<rect width="100%%" height="100%%" fill="%s"/>
`, frame.Width, frame.Height, frame.Width, frame.Height, options.Background)

	for _, l := range frame.Lines {
		fmt.Fprintf(&buf, `<line class="link" x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="%g"/>
`, l.X1, l.Y1, l.X2, l.Y2, options.EdgeColor, options.EdgeWidth)
	}

	for _, c := range frame.Circles {
		fmt.Fprintf(&buf, `<circle class="node" cx="%.2f" cy="%.2f" r="%g" fill="%s" stroke="#ffffff" stroke-width="1.5"><title>%s</title></circle>
`, c.CX, c.CY, c.R, options.color(c.ID), html.EscapeString(c.Label))

		if options.ShowLabels && c.Label != "" {
			fmt.Fprintf(&buf, `<text x="%.2f" y="%.2f" font-family="sans-serif" font-size="%g" fill="#333333" text-anchor="middle">%s</text>
`, c.CX, c.CY+c.R+options.FontSize+2, options.FontSize, html.EscapeString(c.Label))
		}
	}

	if options.Timestamp {
		fmt.Fprintf(&buf, `<text x="5" y="%g" font-family="sans-serif" font-size="8" fill="#808080">%s</text>
`, frame.Height-5, time.Now().Format("2006-01-02 15:04:05"))
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes(), nil
}

// ASCIIRenderer outputs ASCII art format
type ASCIIRenderer struct{}

// Name returns the name of the renderer
func (r *ASCIIRenderer) Name() string {
	return "ASCII Renderer"
}

// Description returns a description of the renderer
func (r *ASCIIRenderer) Description() string {
	return "Renders the frame as ASCII art for terminal output"
}

// nodeSymbols mark circles on the ASCII grid. Lines never overwrite them.
var nodeSymbols = []rune{'O', '@', '#', 'X', '*', '+'}

// Render creates an ASCII representation of the frame
func (r *ASCIIRenderer) Render(frame Frame, options *OutputOptions) ([]byte, error) {
	width := max(int(frame.Width/10), 40)
	height := max(int(frame.Height/20), 20)

	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}

	for i := 0; i < width; i++ {
		grid[0][i] = '-'
		grid[height-1][i] = '-'
	}
	for i := 0; i < height; i++ {
		grid[i][0] = '|'
		grid[i][width-1] = '|'
	}
	grid[0][0], grid[0][width-1] = '+', '+'
	grid[height-1][0], grid[height-1][width-1] = '+', '+'

	toGrid := func(x, y float64) (int, int) {
		gx := int(x*float64(width-2)/frame.Width) + 1
		gy := int(y*float64(height-2)/frame.Height) + 1
		return clamp(gx, 1, width-2), clamp(gy, 1, height-2)
	}

	for _, l := range frame.Lines {
		x1, y1 := toGrid(l.X1, l.Y1)
		x2, y2 := toGrid(l.X2, l.Y2)
		drawLine(grid, x1, y1, x2, y2)
	}

	for _, c := range frame.Circles {
		x, y := toGrid(c.CX, c.CY)
		grid[y][x] = nodeSymbols[c.ID%len(nodeSymbols)]

		if options.ShowLabels && c.Label != "" && y+1 < height-1 {
			label := []rune(c.Label)
			for i := 0; i < len(label) && x+i < width-1; i++ {
				if !isNodeSymbol(grid[y+1][x+i]) {
					grid[y+1][x+i] = label[i]
				}
			}
		}
	}

	var result strings.Builder
	for _, row := range grid {
		result.WriteString(string(row))
		result.WriteRune('\n')
	}
	return []byte(result.String()), nil
}

// JSONRenderer outputs raw JSON format
type JSONRenderer struct{}

// Name returns the name of the renderer
func (r *JSONRenderer) Name() string {
	return "JSON Renderer"
}

// Description returns a description of the renderer
func (r *JSONRenderer) Description() string {
	return "Renders the frame as JSON for custom front ends"
}

// Render creates a JSON representation of the frame
func (r *JSONRenderer) Render(frame Frame, options *OutputOptions) ([]byte, error) {
	return json.MarshalIndent(frame, "", "  ")
}

// DOTRenderer outputs Graphviz DOT format
type DOTRenderer struct{}

// Name returns the name of the renderer
func (r *DOTRenderer) Name() string {
	return "DOT Renderer"
}

// Description returns a description of the renderer
func (r *DOTRenderer) Description() string {
	return "Renders the frame as Graphviz DOT with pinned node positions"
}

// Render creates a DOT representation of the frame. Positions are pinned
// in points with the y axis flipped, since Graphviz grows upward.
func (r *DOTRenderer) Render(frame Frame, options *OutputOptions) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  graph [bgcolor=%q, inputscale=72];\n", options.Background)
	fmt.Fprintf(&buf, "  node [shape=circle, style=filled, fontname=\"Arial\", fontsize=%g, fixedsize=true];\n", options.FontSize)
	fmt.Fprintf(&buf, "  edge [color=%q, arrowsize=0.5];\n", options.EdgeColor)

	for _, c := range frame.Circles {
		fmt.Fprintf(&buf, "  %q [fillcolor=%q, width=%.3f, pos=\"%.2f,%.2f!\"];\n",
			c.Label, options.color(c.ID), 2*c.R/72, c.CX, frame.Height-c.CY)
	}
	for _, l := range frame.Lines {
		fmt.Fprintf(&buf, "  %q -> %q;\n", l.Source, l.Target)
	}

	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// PNGRenderer rasterizes the DOT output with Graphviz neato.
type PNGRenderer struct{}

// Name returns the name of the renderer
func (r *PNGRenderer) Name() string {
	return "PNG Renderer"
}

// Description returns a description of the renderer
func (r *PNGRenderer) Description() string {
	return "Renders the frame as a PNG image using Graphviz"
}

// Render creates a PNG representation of the frame
func (r *PNGRenderer) Render(frame Frame, options *OutputOptions) ([]byte, error) {
	dot, err := (&DOTRenderer{}).Render(frame, options)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes(dot)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "parse DOT")
	}
	defer g.Close()

	gv.SetLayout(graphviz.NEATO)

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.PNG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render PNG")
	}
	return buf.Bytes(), nil
}

// Clamp a value between lo and hi
func clamp(val, lo, hi int) int {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}

func isNodeSymbol(r rune) bool {
	for _, s := range nodeSymbols {
		if r == s {
			return true
		}
	}
	return false
}

// Draw a line on the ASCII grid using Bresenham's algorithm
func drawLine(grid [][]rune, x1, y1, x2, y2 int) {
	dx := abs(x2 - x1)
	dy := -abs(y2 - y1)
	sx := 1
	if x1 >= x2 {
		sx = -1
	}
	sy := 1
	if y1 >= y2 {
		sy = -1
	}
	err := dx + dy

	for {
		if y1 >= 0 && y1 < len(grid) && x1 >= 0 && x1 < len(grid[y1]) && !isNodeSymbol(grid[y1][x1]) {
			grid[y1][x1] = '.'
		}

		if x1 == x2 && y1 == y2 {
			break
		}

		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x1 += sx
		}
		if e2 <= dx {
			err += dx
			y1 += sy
		}
	}
}

// Absolute value of an integer
func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
