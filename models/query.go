package models

import "sort"

// FindNode returns the node with the given name.
func (g *Graph) FindNode(name string) (*Node, bool) {
	n, ok := g.Nodes[name]
	return n, ok
}

// Names returns all node names in sorted order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OutgoingEdges returns all edges originating from a node.
func (g *Graph) OutgoingEdges(name string) []*Edge {
	var result []*Edge
	for _, e := range g.Edges {
		if e.Source.Name == name {
			result = append(result, e)
		}
	}
	return result
}

// IncomingEdges returns all edges targeting a node.
func (g *Graph) IncomingEdges(name string) []*Edge {
	var result []*Edge
	for _, e := range g.Edges {
		if e.Target.Name == name {
			result = append(result, e)
		}
	}
	return result
}

// Positions returns the current position of every node keyed by name.
func (g *Graph) Positions() map[string]Point {
	out := make(map[string]Point, len(g.Nodes))
	for name, n := range g.Nodes {
		out[name] = n.Position()
	}
	return out
}

// Links returns the raw links the graph's edges were built from.
func (g *Graph) Links() []Link {
	out := make([]Link, len(g.Edges))
	for i, e := range g.Edges {
		out[i] = Link{Source: e.Source.Name, Target: e.Target.Name}
	}
	return out
}
