package physics

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/TFMV/forcegraph/errors"
	"github.com/TFMV/forcegraph/models"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// TickEvent is delivered to subscribers after every simulation step.
// Done is set on the single event emitted when the simulation cools.
type TickEvent struct {
	Tick  int
	Alpha float64
	Done  bool
	Graph *models.Graph
}

// TickFunc receives tick notifications. It runs on the engine goroutine
// with the engine locked and must not call back into the engine.
type TickFunc func(TickEvent)

// LayoutEngine computes node positions for a graph and notifies
// subscribers on every tick.
type LayoutEngine interface {
	Initialize(graph *models.Graph)
	Step() bool // Returns true once the simulation has cooled
	OnTick(fn TickFunc) (cancel func())
	Run(ctx context.Context) error
	Resume()
	Alpha() float64
	GetName() string
}

// Config holds the force parameters. The defaults are the classic D3 v3
// force layout values.
type Config struct {
	Placement    Placement
	Seed         int64
	TickInterval time.Duration
	Friction     float64
	Gravity      float64
	Charge       float64
	LinkStrength float64
}

const (
	startAlpha = 0.1
	alphaDecay = 0.99
	minAlpha   = 0.005
)

// DefaultConfig returns the D3 v3 defaults with a 60 Hz tick.
func DefaultConfig() Config {
	return Config{
		Placement:    PlacementNoise,
		Seed:         1,
		TickInterval: time.Second / 60,
		Friction:     0.9,
		Gravity:      0.1,
		Charge:       -30,
		LinkStrength: 1,
	}
}

// ForceLayout is a force-directed layout with link constraints, gravity
// toward the canvas centre, pairwise charge and Verlet integration.
type ForceLayout struct {
	cfg      Config
	graph    *models.Graph
	noise    opensimplex.Noise
	alpha    float64
	ticks    int
	handlers map[int]TickFunc
	nextID   int
	wake     chan struct{}
	mu       sync.Mutex
}

// NewForceLayout creates a force layout. Zero fields in cfg take their
// defaults.
func NewForceLayout(cfg Config) *ForceLayout {
	def := DefaultConfig()
	if cfg.Placement == "" {
		cfg.Placement = def.Placement
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.Friction == 0 {
		cfg.Friction = def.Friction
	}
	if cfg.Gravity == 0 {
		cfg.Gravity = def.Gravity
	}
	if cfg.Charge == 0 {
		cfg.Charge = def.Charge
	}
	if cfg.LinkStrength == 0 {
		cfg.LinkStrength = def.LinkStrength
	}
	return &ForceLayout{
		cfg:      cfg,
		noise:    opensimplex.New(cfg.Seed),
		handlers: make(map[int]TickFunc),
		wake:     make(chan struct{}, 1),
	}
}

// GetName returns the name of the layout algorithm
func (fl *ForceLayout) GetName() string {
	return "Force-Directed Layout"
}

// Initialize registers the graph's nodes and edges, places every node that
// has no position yet and heats the simulation.
func (fl *ForceLayout) Initialize(graph *models.Graph) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	fl.graph = graph
	fl.ticks = 0

	for _, n := range graph.Order {
		n.Weight = 0
	}
	for _, e := range graph.Edges {
		e.Source.Weight++
		e.Target.Weight++
	}

	place(fl.cfg.Placement, fl.noise, graph)
	fl.alpha = startAlpha
}

// Graph returns the graph registered by Initialize.
func (fl *ForceLayout) Graph() *models.Graph {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.graph
}

// OnTick subscribes fn to tick notifications and returns a function that
// removes the subscription.
func (fl *ForceLayout) OnTick(fn TickFunc) func() {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	id := fl.nextID
	fl.nextID++
	fl.handlers[id] = fn

	return func() {
		fl.mu.Lock()
		defer fl.mu.Unlock()
		delete(fl.handlers, id)
	}
}

// Alpha returns the current simulation temperature. Zero means cooled.
func (fl *ForceLayout) Alpha() float64 {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	return fl.alpha
}

// Resume reheats the simulation and wakes Run if it is waiting.
func (fl *ForceLayout) Resume() {
	fl.mu.Lock()
	fl.resume()
	fl.mu.Unlock()
}

func (fl *ForceLayout) resume() {
	fl.alpha = startAlpha
	select {
	case fl.wake <- struct{}{}:
	default:
	}
}

// Fix pins the named node at (x, y), as a drag does, and reheats the
// simulation so its neighbours follow.
func (fl *ForceLayout) Fix(name string, x, y float64) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	n, err := fl.node(name)
	if err != nil {
		return err
	}
	n.Fixed = true
	n.X, n.PX = x, x
	n.Y, n.PY = y, y
	fl.resume()
	return nil
}

// Release unpins the named node.
func (fl *ForceLayout) Release(name string) error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	n, err := fl.node(name)
	if err != nil {
		return err
	}
	n.Fixed = false
	return nil
}

func (fl *ForceLayout) node(name string) (*models.Node, error) {
	if fl.graph == nil {
		return nil, errors.New(errors.ErrCodeNotFound, "node %q: layout not initialized", name)
	}
	n, ok := fl.graph.Nodes[name]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "node %q", name)
	}
	return n, nil
}

// Snapshot returns a copy of every node position taken under the engine lock.
func (fl *ForceLayout) Snapshot() map[string]models.Point {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	if fl.graph == nil {
		return map[string]models.Point{}
	}
	return fl.graph.Positions()
}

// Pinned returns the names of the nodes currently fixed in place.
func (fl *ForceLayout) Pinned() map[string]bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	out := make(map[string]bool)
	if fl.graph == nil {
		return out
	}
	for name, n := range fl.graph.Nodes {
		if n.Fixed {
			out[name] = true
		}
	}
	return out
}

// Step performs one iteration of the layout algorithm
func (fl *ForceLayout) Step() bool {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.graph == nil || fl.alpha == 0 {
		return true
	}

	fl.alpha *= alphaDecay
	if fl.alpha < minAlpha {
		fl.alpha = 0
		fl.emit(TickEvent{Tick: fl.ticks, Done: true, Graph: fl.graph})
		return true
	}

	fl.applyLinks()
	fl.applyGravity()
	fl.applyCharge()
	fl.integrate()

	fl.ticks++
	fl.emit(TickEvent{Tick: fl.ticks, Alpha: fl.alpha, Graph: fl.graph})
	return false
}

func (fl *ForceLayout) emit(ev TickEvent) {
	for _, fn := range fl.handlers {
		fn(ev)
	}
}

// applyLinks relaxes every edge toward the link distance. Each endpoint
// moves in proportion to the other endpoint's share of the total degree.
func (fl *ForceLayout) applyLinks() {
	dist := fl.graph.LinkDistance
	for _, e := range fl.graph.Edges {
		s, t := e.Source, e.Target
		x := t.X - s.X
		y := t.Y - s.Y
		l := x*x + y*y
		if l == 0 {
			continue
		}
		l = math.Sqrt(l)
		l = fl.alpha * fl.cfg.LinkStrength * (l - dist) / l
		x *= l
		y *= l

		k := 0.5
		if w := s.Weight + t.Weight; w > 0 {
			k = float64(s.Weight) / float64(w)
		}
		t.X -= x * k
		t.Y -= y * k
		s.X += x * (1 - k)
		s.Y += y * (1 - k)
	}
}

func (fl *ForceLayout) applyGravity() {
	k := fl.alpha * fl.cfg.Gravity
	if k == 0 {
		return
	}
	cx := fl.graph.Width / 2
	cy := fl.graph.Height / 2
	for _, n := range fl.graph.Order {
		n.X += (cx - n.X) * k
		n.Y += (cy - n.Y) * k
	}
}

// applyCharge pushes every free node away from every other node. The push
// lands on the previous position so integrate turns it into velocity.
func (fl *ForceLayout) applyCharge() {
	charge := fl.alpha * fl.cfg.Charge
	nodes := fl.graph.Order
	for _, o := range nodes {
		if o.Fixed {
			continue
		}
		for _, p := range nodes {
			if p == o {
				continue
			}
			dx := p.X - o.X
			dy := p.Y - o.Y
			dn := dx*dx + dy*dy
			if dn == 0 {
				dx, dy = fl.jitter(o, p)
				dn = dx*dx + dy*dy
			}
			k := charge / dn
			o.PX -= dx * k
			o.PY -= dy * k
		}
	}
}

// jitter returns a small deterministic offset from o toward p for two
// coincident nodes. The pair gets opposite offsets so they separate.
func (fl *ForceLayout) jitter(o, p *models.Node) (float64, float64) {
	a := float64(min(o.Index, p.Index)) + 0.37
	b := float64(max(o.Index, p.Index)) + 0.37
	t := float64(fl.ticks)
	dx := fl.noise.Eval2(a, b+t)
	dy := fl.noise.Eval2(b+0.5, a+t)
	if math.Abs(dx)+math.Abs(dy) < 1e-6 {
		dx = 1
	}
	if o.Index > p.Index {
		dx, dy = -dx, -dy
	}
	return dx, dy
}

func (fl *ForceLayout) integrate() {
	friction := fl.cfg.Friction
	for _, n := range fl.graph.Order {
		if n.Fixed {
			n.X, n.Y = n.PX, n.PY
			continue
		}
		vx := n.PX - n.X
		vy := n.PY - n.Y
		n.PX, n.PY = n.X, n.Y
		n.X -= vx * friction
		n.Y -= vy * friction
	}
}

// Run ticks the simulation every TickInterval until ctx ends. While the
// simulation is cooled it waits for Resume instead of ticking.
func (fl *ForceLayout) Run(ctx context.Context) error {
	ticker := time.NewTicker(fl.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !fl.Step() {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-fl.wake:
			}
		}
	}
}

// Settle steps the simulation without delay until it cools, maxIterations
// is reached or ctx ends. It returns the number of steps taken and whether
// the layout cooled.
func Settle(ctx context.Context, engine LayoutEngine, maxIterations int) (int, bool, error) {
	for i := 0; maxIterations <= 0 || i < maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			return i, false, err
		}
		if engine.Step() {
			return i, true, nil
		}
	}
	return maxIterations, false, nil
}

// Ensure ForceLayout implements LayoutEngine.
var _ LayoutEngine = (*ForceLayout)(nil)
