package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/forcegraph/cache"
	"github.com/TFMV/forcegraph/errors"
	"github.com/TFMV/forcegraph/ingest"
	"github.com/TFMV/forcegraph/models"
	"github.com/TFMV/forcegraph/physics"
	"github.com/TFMV/forcegraph/render"
)

func fastPhysics() physics.Config {
	cfg := physics.DefaultConfig()
	cfg.TickInterval = time.Millisecond
	return cfg
}

func newTestServer(t *testing.T, opts Options) (*Server, *httptest.Server) {
	t.Helper()
	if opts.Links == nil {
		opts.Links = ingest.DefaultLinks()
	}
	if opts.Physics == (physics.Config{}) {
		opts.Physics = fastPhysics()
	}
	s, err := New(opts)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errors.New(errors.ErrCodeInvalidInput, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeInvalidFormat, "x"), http.StatusBadRequest},
		{errors.New(errors.ErrCodeNotFound, "x"), http.StatusNotFound},
		{errors.New(errors.ErrCodeInternal, "x"), http.StatusInternalServerError},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}

func TestIndex(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	sess, err := s.DefaultSession()
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	var body strings.Builder
	_, err = bufio.NewReader(resp.Body).WriteTo(&body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), sess.ID)
	assert.Contains(t, body.String(), "EventSource")

	resp, err = http.Get(ts.URL + "/?graph=nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetGraphBackendFormat(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	sess, _ := s.DefaultSession()

	resp, err := http.Get(ts.URL + "/api/graphs/" + sess.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v View
	decode(t, resp, &v)
	assert.Equal(t, "links", v.Name)
	require.Len(t, v.Nodes, 6)
	require.Len(t, v.Links, 6)
	assert.Equal(t, ViewNode{ID: 0, Name: "120.0.0.0"}, v.Nodes[0])
	assert.Equal(t, ViewLink{Source: 0, Target: 1}, v.Links[0])
	assert.Equal(t, ViewLink{Source: 5, Target: 0}, v.Links[5])

	// the backend format round-trips through the JSON link source
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	links, err := (&ingest.JSONProcessor{}).ProcessData(raw)
	require.NoError(t, err)
	assert.Equal(t, ingest.DefaultLinks(), links)
}

func TestCreateGraph(t *testing.T) {
	s, ts := newTestServer(t, Options{})

	body := `[{"source":"a","target":"b"},{"source":"b","target":"c"}]`
	resp, err := http.Post(ts.URL+"/api/graphs", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created graphSummary
	decode(t, resp, &created)
	assert.Equal(t, 3, created.Nodes)
	assert.Equal(t, 2, created.Links)
	assert.Equal(t, "/api/graphs/"+created.ID, resp.Header.Get("Location"))

	_, err = s.Session(created.ID)
	require.NoError(t, err)

	resp, err = http.Get(ts.URL + "/api/graphs")
	require.NoError(t, err)
	var list []graphSummary
	decode(t, resp, &list)
	assert.Len(t, list, 2)
}

func TestCreateGraphOtherFormats(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	resp, err := http.Post(ts.URL+"/api/graphs?format=log", "text/plain", strings.NewReader("a -> b\nb -> a\n"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/graphs?format=xml", "text/xml", strings.NewReader("<a/>"))
	require.NoError(t, err)
	var e errorBody
	decode(t, resp, &e)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, errors.ErrCodeInvalidFormat, e.Code)
}

func TestCreateGraphRejectsBadInput(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	for _, body := range []string{`{`, `[{"source":"","target":"b"}]`} {
		resp, err := http.Post(ts.URL+"/api/graphs", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		var e errorBody
		decode(t, resp, &e)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, errors.ErrCodeInvalidInput, e.Code, body)
	}
}

func TestUnknownGraph(t *testing.T) {
	_, ts := newTestServer(t, Options{})

	for _, path := range []string{"", "/frame", "/render", "/stream"} {
		resp, err := http.Get(ts.URL + "/api/graphs/missing" + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
}

func TestFrame(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	sess, _ := s.DefaultSession()

	resp, err := http.Get(ts.URL + "/api/graphs/" + sess.ID + "/frame")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var f render.Frame
	decode(t, resp, &f)
	assert.Equal(t, 640.0, f.Width)
	assert.Len(t, f.Lines, 6)
	assert.Len(t, f.Circles, 6)
	assert.GreaterOrEqual(t, f.Seq, 1)
}

func TestRender(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	sess, _ := s.DefaultSession()
	base := ts.URL + "/api/graphs/" + sess.ID + "/render"

	resp, err := http.Get(base)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/svg+xml", resp.Header.Get("Content-Type"))

	resp, err = http.Get(base + "?format=dot")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "text/vnd.graphviz", resp.Header.Get("Content-Type"))

	resp, err = http.Get(base + "?format=gif")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFixAndRelease(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	sess, _ := s.DefaultSession()
	url := ts.URL + "/api/graphs/" + sess.ID + "/nodes/120.0.0.3/fix"

	resp, err := http.Post(url, "application/json", strings.NewReader(`{"x":10,"y":20}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	assert.True(t, sess.Engine().Pinned()["120.0.0.3"])
	assert.Equal(t, models.Point{X: 10, Y: 20}, sess.Engine().Snapshot()["120.0.0.3"])
	assert.Greater(t, sess.Engine().Alpha(), 0.0)

	resp, err = http.Get(ts.URL + "/api/graphs/" + sess.ID)
	require.NoError(t, err)
	var v View
	decode(t, resp, &v)
	assert.True(t, v.Nodes[2].Fixed)

	req, _ := http.NewRequest(http.MethodDelete, url, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.False(t, sess.Engine().Pinned()["120.0.0.3"])
}

func TestFixErrors(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	sess, _ := s.DefaultSession()
	base := ts.URL + "/api/graphs/" + sess.ID + "/nodes/"

	resp, err := http.Post(base+"nobody/fix", "application/json", strings.NewReader(`{"x":1,"y":2}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(base+"120.0.0.0/fix", "application/json", strings.NewReader(`{"x":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(base+"120.0.0.0/fix", "application/json", strings.NewReader(`nope`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStream(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	sess, _ := s.DefaultSession()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/graphs/"+sess.ID+"/stream", nil)
	require.NoError(t, err)

	// reheat so frames keep flowing even if the layout already cooled
	sess.Engine().Resume()

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var frames []render.Frame
	for len(frames) < 3 && scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f render.Frame
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f))
		frames = append(frames, f)
	}
	require.Len(t, frames, 3)
	assert.Less(t, frames[0].Seq, frames[2].Seq)
	assert.Len(t, frames[2].Circles, 6)
}

func TestDeleteGraph(t *testing.T) {
	s, ts := newTestServer(t, Options{})
	sess, err := s.CreateSession([]models.Link{{Source: "a", Target: "b"}})
	require.NoError(t, err)

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/graphs/"+sess.ID, nil)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err = s.Session(sess.ID)
	assert.True(t, errors.Is(err, errors.ErrCodeNotFound))

	def, _ := s.DefaultSession()
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/api/graphs/"+def.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCooledLayoutIsCached(t *testing.T) {
	c, err := cache.NewFileCache(t.TempDir())
	require.NoError(t, err)

	links := []models.Link{{Source: "a", Target: "b"}, {Source: "b", Target: "c"}}
	_, _ = newTestServer(t, Options{Links: links, Cache: c})

	cfg := physics.DefaultConfig()
	key := cache.LayoutKey(links, cache.LayoutKeyOpts{
		Width:        models.DefaultWidth,
		Height:       models.DefaultHeight,
		LinkDistance: models.DefaultLinkDistance,
		Placement:    string(cfg.Placement),
		Seed:         cfg.Seed,
	})

	require.Eventually(t, func() bool {
		_, hit, err := c.Get(context.Background(), key)
		return err == nil && hit
	}, 10*time.Second, 20*time.Millisecond)

	// a second server over the same links starts from the cached layout
	s2, _ := newTestServer(t, Options{Links: links, Cache: c})
	sess, _ := s2.DefaultSession()
	assert.Len(t, sess.Engine().Snapshot(), 3)
}

func TestNewRejectsInvalidDefaultLinks(t *testing.T) {
	_, err := New(Options{Links: []models.Link{{Source: "a", Target: ""}}})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}
