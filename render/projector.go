package render

import (
	"fmt"

	"github.com/TFMV/forcegraph/models"
	"github.com/TFMV/forcegraph/physics"
)

// radiusFactor sizes node circles relative to the canvas width.
const radiusFactor = 0.03

// Projector binds one line to every edge and one circle to every node and
// copies positions into them on each tick.
type Projector struct {
	graph   *models.Graph
	surface Surface
	lines   []int
	circles []int
	frames  int
}

// NewProjector creates the primitives for g on surface. Lines are created
// before circles so nodes draw on top of edges.
func NewProjector(g *models.Graph, surface Surface) (*Projector, error) {
	if g == nil {
		return nil, fmt.Errorf("projector: nil graph")
	}
	if surface == nil {
		return nil, fmt.Errorf("projector: nil surface")
	}

	width, _ := surface.Size()
	radius := width * radiusFactor

	p := &Projector{
		graph:   g,
		surface: surface,
		lines:   make([]int, len(g.Edges)),
		circles: make([]int, len(g.Order)),
	}
	for i, e := range g.Edges {
		p.lines[i] = surface.NewLine(e.Source.Name, e.Target.Name)
	}
	for i, n := range g.Order {
		p.circles[i] = surface.NewCircle(n.Name, radius)
	}
	return p, nil
}

// Tick projects the current node positions onto the surface.
func (p *Projector) Tick(physics.TickEvent) {
	for i, n := range p.graph.Order {
		p.surface.SetCircle(p.circles[i], n.X, n.Y)
	}
	for i, e := range p.graph.Edges {
		p.surface.SetLine(p.lines[i], e.Source.X, e.Source.Y, e.Target.X, e.Target.Y)
	}
	p.surface.Commit()
	p.frames++
}

// Attach subscribes the projector to engine ticks and draws the initial
// positions immediately.
func (p *Projector) Attach(engine physics.LayoutEngine) (cancel func()) {
	p.Tick(physics.TickEvent{Graph: p.graph})
	return engine.OnTick(p.Tick)
}

// Frames returns the number of frames projected so far.
func (p *Projector) Frames() int {
	return p.frames
}
