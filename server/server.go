// Package server serves live force layouts over HTTP. Every uploaded link
// list becomes a session whose simulation runs in the background and
// streams frames to browsers as Server-Sent Events.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/TFMV/forcegraph/cache"
	"github.com/TFMV/forcegraph/errors"
	"github.com/TFMV/forcegraph/graph"
	"github.com/TFMV/forcegraph/models"
	"github.com/TFMV/forcegraph/physics"
)

// maxUploadSize bounds the body of POST /api/graphs.
const maxUploadSize = 10 << 20

// Options configures a Server. Zero values take defaults.
type Options struct {
	Port     int
	Links    []models.Link // default session, nil = no default session
	Graph    graph.Options
	Physics  physics.Config
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   *log.Logger
}

// Server owns the sessions and the HTTP routes that expose them.
type Server struct {
	opts   Options
	logger *log.Logger
	cache  cache.Cache
	router chi.Router

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.RWMutex
	sessions  map[string]*Session
	defaultID string
}

// New creates a server and, when opts.Links is set, its default session.
// Sessions keep running until Close.
func New(opts Options) (*Server, error) {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewNullCache()
	}
	if opts.Physics == (physics.Config{}) {
		opts.Physics = physics.DefaultConfig()
	}
	if opts.Physics.Placement == "" {
		opts.Physics.Placement = physics.PlacementNoise
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		opts:     opts,
		logger:   opts.Logger,
		cache:    opts.Cache,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
	s.router = s.routes()

	if opts.Links != nil {
		sess, err := s.CreateSession(opts.Links)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("default session: %w", err)
		}
		s.defaultID = sess.ID
	}
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Route("/api/graphs", func(r chi.Router) {
		r.Get("/", s.handleListGraphs)
		r.Post("/", s.handleCreateGraph)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetGraph)
			r.Delete("/", s.handleDeleteGraph)
			r.Get("/frame", s.handleFrame)
			r.Get("/stream", s.handleStream)
			r.Get("/render", s.handleRender)
			r.Post("/nodes/{name}/fix", s.handleFix)
			r.Delete("/nodes/{name}/fix", s.handleRelease)
		})
	})
	return r
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured port until ctx ends, then shuts down
// gracefully and stops every session.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", s.opts.Port),
		Handler:     s.router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
		// WriteTimeout stays unset: event streams are long-lived.
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "port", s.opts.Port, "sessions", s.count())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down")
	// streams only end once their sessions stop
	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close stops every session.
func (s *Server) Close() {
	s.cancel()
}

// CreateSession builds a graph from links and starts its simulation.
func (s *Server) CreateSession(links []models.Link) (*Session, error) {
	sess, err := newSession(s.ctx, links, s.opts, s.logger)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	go sess.run()
	s.logger.Debug("Session created", "id", sess.ID, "nodes", len(sess.graph.Order), "edges", len(sess.graph.Edges))
	return sess, nil
}

// Session returns the session with the given id.
func (s *Server) Session(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.New(errors.ErrCodeNotFound, "graph %s not found", id)
	}
	return sess, nil
}

// DefaultSession returns the session built from Options.Links.
func (s *Server) DefaultSession() (*Session, error) {
	if s.defaultID == "" {
		return nil, errors.New(errors.ErrCodeNotFound, "no default graph")
	}
	return s.Session(s.defaultID)
}

// RemoveSession stops a session and forgets it.
func (s *Server) RemoveSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return errors.New(errors.ErrCodeNotFound, "graph %s not found", id)
	}
	sess.stop()
	return nil
}

func (s *Server) ids() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Server) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// requestLogger logs one line per request through the server logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"took", time.Since(start),
			"id", middleware.GetReqID(r.Context()),
		)
	})
}
