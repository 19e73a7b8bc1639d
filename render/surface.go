package render

import (
	"sync"
)

// Surface is a drawable canvas holding line and circle primitives. The
// projector creates primitives once and then only moves them.
type Surface interface {
	Size() (width, height float64)
	NewLine(source, target string) int
	NewCircle(label string, radius float64) int
	SetLine(id int, x1, y1, x2, y2 float64)
	SetCircle(id int, cx, cy float64)
	Commit()
}

// Circle is a node primitive.
type Circle struct {
	ID    int     `json:"id"`
	Label string  `json:"label"`
	CX    float64 `json:"cx"`
	CY    float64 `json:"cy"`
	R     float64 `json:"r"`
}

// Line is an edge primitive.
type Line struct {
	ID     int     `json:"id"`
	Source string  `json:"source"`
	Target string  `json:"target"`
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	X2     float64 `json:"x2"`
	Y2     float64 `json:"y2"`
}

// Frame is an immutable snapshot of a surface after a commit.
type Frame struct {
	Seq     int      `json:"seq"`
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Lines   []Line   `json:"lines"`
	Circles []Circle `json:"circles"`
}

// Scene is an in-memory Surface. Every Commit publishes a Frame to the
// subscribers; a subscriber that has not drained its channel misses that
// frame rather than blocking the simulation.
type Scene struct {
	mu      sync.RWMutex
	width   float64
	height  float64
	lines   []Line
	circles []Circle
	seq     int
	subs    map[int]chan Frame
	nextSub int
}

// NewScene creates an empty scene of the given size.
func NewScene(width, height float64) *Scene {
	return &Scene{
		width:  width,
		height: height,
		subs:   make(map[int]chan Frame),
	}
}

// Size returns the canvas dimensions.
func (s *Scene) Size() (float64, float64) {
	return s.width, s.height
}

// NewLine adds a line and returns its id.
func (s *Scene) NewLine(source, target string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := len(s.lines)
	s.lines = append(s.lines, Line{ID: id, Source: source, Target: target})
	return id
}

// NewCircle adds a circle and returns its id.
func (s *Scene) NewCircle(label string, radius float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := len(s.circles)
	s.circles = append(s.circles, Circle{ID: id, Label: label, R: radius})
	return id
}

// SetLine moves a line's endpoints. Unknown ids are ignored.
func (s *Scene) SetLine(id int, x1, y1, x2, y2 float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.lines) {
		return
	}
	l := &s.lines[id]
	l.X1, l.Y1, l.X2, l.Y2 = x1, y1, x2, y2
}

// SetCircle moves a circle's centre. Unknown ids are ignored.
func (s *Scene) SetCircle(id int, cx, cy float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id < 0 || id >= len(s.circles) {
		return
	}
	c := &s.circles[id]
	c.CX, c.CY = cx, cy
}

// Commit ends the current frame and publishes it.
func (s *Scene) Commit() {
	s.mu.Lock()
	s.seq++
	f := s.frame()
	subs := make([]chan Frame, 0, len(s.subs))
	for _, ch := range s.subs {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- f:
		default:
		}
	}
}

// Frame returns a snapshot of the last committed state.
func (s *Scene) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame()
}

func (s *Scene) frame() Frame {
	return Frame{
		Seq:     s.seq,
		Width:   s.width,
		Height:  s.height,
		Lines:   append([]Line(nil), s.lines...),
		Circles: append([]Circle(nil), s.circles...),
	}
}

// Subscribe returns a channel receiving every committed frame and a
// function that ends the subscription.
func (s *Scene) Subscribe(buffer int) (<-chan Frame, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Frame, buffer)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Ensure Scene implements Surface.
var _ Surface = (*Scene)(nil)
