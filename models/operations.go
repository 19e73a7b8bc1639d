package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Default canvas settings, matching the original browser visualization.
const (
	DefaultWidth        = 640.0
	DefaultHeight       = 480.0
	DefaultLinkDistance = 100.0
)

// NewNode creates an unplaced node named by its identifier.
func NewNode(name string, index int) *Node {
	return &Node{Name: name, Index: index}
}

// SetPosition places the node and zeroes its velocity.
func (n *Node) SetPosition(x, y float64) {
	n.X, n.Y = x, y
	n.PX, n.PY = x, y
	n.placed = true
}

// Placed reports whether the node has been given a position.
func (n *Node) Placed() bool {
	return n.placed
}

// Position returns the node's current position.
func (n *Node) Position() Point {
	return Point{X: n.X, Y: n.Y}
}

// NewGraph creates an empty graph with a unique ID and the default canvas.
func NewGraph(name string) *Graph {
	return &Graph{
		ID:           uuid.New().String(),
		Name:         name,
		Nodes:        make(map[string]*Node),
		Order:        []*Node{},
		Edges:        []*Edge{},
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		LinkDistance: DefaultLinkDistance,
		CreatedAt:    time.Now(),
	}
}

// Node returns the node for name, creating it on first sight.
func (g *Graph) Node(name string) *Node {
	if n, ok := g.Nodes[name]; ok {
		return n
	}
	n := NewNode(name, len(g.Order))
	g.Nodes[name] = n
	g.Order = append(g.Order, n)
	return n
}

// AddEdge appends an edge between the nodes named by source and target.
func (g *Graph) AddEdge(index int, source, target string) *Edge {
	e := &Edge{Index: index, Source: g.Node(source), Target: g.Node(target)}
	g.Edges = append(g.Edges, e)
	return e
}

// SetDimensions sets the width and height of the canvas.
func (g *Graph) SetDimensions(width, height float64) {
	g.Width = width
	g.Height = height
}

// Validate checks the structural invariants of a built graph: every edge
// endpoint is the node stored under its name, the order slice and the map
// agree, and every node is referenced by at least one edge.
func (g *Graph) Validate() error {
	if len(g.Order) != len(g.Nodes) {
		return fmt.Errorf("node order has %d entries, map has %d", len(g.Order), len(g.Nodes))
	}
	for i, n := range g.Order {
		if g.Nodes[n.Name] != n {
			return fmt.Errorf("node %q at order %d is not the mapped instance", n.Name, i)
		}
	}

	referenced := make(map[string]bool, len(g.Nodes))
	for i, e := range g.Edges {
		if e.Source == nil || e.Target == nil {
			return fmt.Errorf("edge %d has a nil endpoint", i)
		}
		if g.Nodes[e.Source.Name] != e.Source {
			return fmt.Errorf("edge %d source %q is not the mapped instance", i, e.Source.Name)
		}
		if g.Nodes[e.Target.Name] != e.Target {
			return fmt.Errorf("edge %d target %q is not the mapped instance", i, e.Target.Name)
		}
		referenced[e.Source.Name] = true
		referenced[e.Target.Name] = true
	}
	for name := range g.Nodes {
		if !referenced[name] {
			return fmt.Errorf("node %q is not referenced by any edge", name)
		}
	}
	return nil
}
