package server

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/TFMV/forcegraph/cache"
	"github.com/TFMV/forcegraph/graph"
	"github.com/TFMV/forcegraph/models"
	"github.com/TFMV/forcegraph/physics"
	"github.com/TFMV/forcegraph/render"
)

// Session is one live layout: a graph, the engine moving it and the scene
// its frames are drawn on.
type Session struct {
	ID        string
	CreatedAt time.Time

	graph     *models.Graph
	engine    *physics.ForceLayout
	scene     *render.Scene
	projector *render.Projector

	cache    cache.Cache
	cacheKey string
	cacheTTL time.Duration
	logger   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	cooled chan struct{}
	done   chan struct{}
}

func newSession(parent context.Context, links []models.Link, opts Options, logger *log.Logger) (*Session, error) {
	g, err := graph.Build(links, opts.Graph)
	if err != nil {
		return nil, err
	}

	id := g.ID

	engine := physics.NewForceLayout(opts.Physics)
	key := cache.LayoutKey(links, cache.LayoutKeyOpts{
		Width:        g.Width,
		Height:       g.Height,
		LinkDistance: g.LinkDistance,
		Placement:    string(opts.Physics.Placement),
		Seed:         opts.Physics.Seed,
	})

	ctx, cancel := context.WithCancel(parent)
	if warm, err := cache.LoadPositions(ctx, opts.Cache, key, g); err != nil {
		logger.Warn("Layout cache unavailable", "err", err)
	} else if warm {
		logger.Debug("Warm start from cached layout", "id", id)
	}

	scene := render.NewScene(g.Width, g.Height)
	projector, err := render.NewProjector(g, scene)
	if err != nil {
		cancel()
		return nil, err
	}

	sess := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		graph:     g,
		engine:    engine,
		scene:     scene,
		projector: projector,
		cache:     opts.Cache,
		cacheKey:  key,
		cacheTTL:  opts.CacheTTL,
		logger:    logger.With("session", id[:8]),
		ctx:       ctx,
		cancel:    cancel,
		cooled:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}

	engine.Initialize(g)
	projector.Attach(engine)
	engine.OnTick(func(ev physics.TickEvent) {
		if !ev.Done {
			return
		}
		select {
		case sess.cooled <- struct{}{}:
		default:
		}
	})
	return sess, nil
}

// run drives the simulation until the session stops, persisting the layout
// each time it cools.
func (s *Session) run() {
	defer close(s.done)

	errCh := make(chan error, 1)
	go func() { errCh <- s.engine.Run(s.ctx) }()

	for {
		select {
		case <-s.ctx.Done():
			<-errCh
			return
		case <-s.cooled:
			s.persist()
		}
	}
}

func (s *Session) persist() {
	points := s.engine.Snapshot()
	if err := cache.SavePoints(s.ctx, s.cache, s.cacheKey, points, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to cache layout", "err", err)
		return
	}
	s.logger.Debug("Layout cooled and cached", "nodes", len(points))
}

func (s *Session) stop() {
	s.cancel()
	<-s.done
}

// Frame returns the last frame drawn for this session.
func (s *Session) Frame() render.Frame {
	return s.scene.Frame()
}

// Scene returns the scene the session draws on.
func (s *Session) Scene() *render.Scene {
	return s.scene
}

// Engine returns the session's layout engine.
func (s *Session) Engine() *physics.ForceLayout {
	return s.engine
}

// View is the JSON shape of GET /api/graphs/{id}. Link endpoints are
// indices into Nodes.
type View struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Nodes []ViewNode `json:"nodes"`
	Links []ViewLink `json:"links"`
}

type ViewNode struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Fixed bool   `json:"fixed"`
}

type ViewLink struct {
	Source int `json:"source"`
	Target int `json:"target"`
}

// View describes the session's graph. Only immutable graph fields are read
// directly; pin state comes from the engine.
func (s *Session) View() View {
	pinned := s.engine.Pinned()

	v := View{
		ID:    s.ID,
		Name:  s.graph.Name,
		Nodes: make([]ViewNode, len(s.graph.Order)),
		Links: make([]ViewLink, len(s.graph.Edges)),
	}
	for i, n := range s.graph.Order {
		v.Nodes[i] = ViewNode{ID: n.Index, Name: n.Name, Fixed: pinned[n.Name]}
	}
	for i, e := range s.graph.Edges {
		v.Links[i] = ViewLink{Source: e.Source.Index, Target: e.Target.Index}
	}
	return v
}
