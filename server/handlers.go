package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/TFMV/forcegraph/errors"
	"github.com/TFMV/forcegraph/ingest"
	"github.com/TFMV/forcegraph/render"
)

// statusFor maps an error code onto an HTTP status.
func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "path", r.URL.Path, "err", err)
	}
	writeJSON(w, status, errorBody{Error: errors.UserMessage(err), Code: errors.GetCode(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, err := s.Session(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("graph")
	if id == "" {
		id = s.defaultID
	}
	if _, err := s.Session(id); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, struct{ ID string }{id}); err != nil {
		s.logger.Error("Failed to render index", "err", err)
	}
}

type graphSummary struct {
	ID    string `json:"id"`
	Nodes int    `json:"nodes"`
	Links int    `json:"links"`
}

func (s *Server) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	out := []graphSummary{}
	for _, id := range s.ids() {
		sess, err := s.Session(id)
		if err != nil {
			continue
		}
		out = append(out, graphSummary{ID: id, Nodes: len(sess.graph.Order), Links: len(sess.graph.Edges)})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleCreateGraph accepts a link document in the format named by the
// "format" query parameter, JSON by default.
func (s *Server) handleCreateGraph(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	processor, err := ingest.GetProcessor(format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadSize))
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "error reading body"))
		return
	}
	links, err := processor.ProcessData(data)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.CreateSession(links)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/graphs/"+sess.ID)
	writeJSON(w, http.StatusCreated, graphSummary{
		ID:    sess.ID,
		Nodes: len(sess.graph.Order),
		Links: len(sess.graph.Edges),
	})
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.View())
}

func (s *Server) handleDeleteGraph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == s.defaultID {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "the default graph cannot be deleted"))
		return
	}
	if err := s.RemoveSession(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Frame())
}

// handleStream sends the current frame, then one event per committed frame
// until the client goes away or the session stops.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, errors.New(errors.ErrCodeInternal, "streaming unsupported"))
		return
	}

	frames, cancel := sess.Scene().Subscribe(16)
	defer cancel()

	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(f render.Frame) error {
		data, err := json.Marshal(f)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", f.Seq, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send(sess.Frame()); err != nil {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.ctx.Done():
			return
		case f := <-frames:
			if err := send(f); err != nil {
				s.logger.Debug("Stream closed", "err", err)
				return
			}
		}
	}
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = render.FormatSVG
	}
	renderer, err := render.GetRenderer(format)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out, err := renderer.Render(sess.Frame(), render.NewDefaultOptions(format))
	if err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInternal, err, "render %s", format))
		return
	}
	w.Header().Set("Content-Type", render.ContentType(format))
	_, _ = w.Write(out)
}

type fixRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var req fixRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&req); err != nil {
		s.writeError(w, r, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid position"))
		return
	}
	if req.X == nil || req.Y == nil {
		s.writeError(w, r, errors.New(errors.ErrCodeInvalidInput, "position needs x and y"))
		return
	}

	if err := sess.Engine().Fix(chi.URLParam(r, "name"), *req.X, *req.Y); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := sess.Engine().Release(chi.URLParam(r, "name")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
