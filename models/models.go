// Package models provides the graph data structures shared by the builder,
// the layout engine and the renderers.
package models

import (
	"time"
)

// Link is a raw directed link between two identifiers, as supplied by a
// link source before the graph is built.
type Link struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// Node represents one unique identifier in the graph.
//
// X, Y and PX, PY belong to the layout engine: PX, PY hold the position of
// the previous tick, so X-PX is the node's velocity.
type Node struct {
	Name   string  `json:"name"`
	Index  int     `json:"index"` // first-seen order
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	PX     float64 `json:"px"`
	PY     float64 `json:"py"`
	Fixed  bool    `json:"fixed"`
	Weight int     `json:"weight"` // degree, counted by the builder
	placed bool
}

// Edge is a directed relation between two shared nodes.
type Edge struct {
	Index  int   `json:"index"` // position of the originating link
	Source *Node `json:"-"`
	Target *Node `json:"-"`
}

// Graph is the owned result of building a link list.
type Graph struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Nodes        map[string]*Node `json:"-"`
	Order        []*Node          `json:"nodes"`
	Edges        []*Edge          `json:"-"`
	Width        float64          `json:"width"`
	Height       float64          `json:"height"`
	LinkDistance float64          `json:"link_distance"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Point is a plain coordinate pair.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}
