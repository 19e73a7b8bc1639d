// Package graph_test checks the builder's node derivation: key sets, node
// sharing across edges, idempotence, and the link policies.
package graph_test

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TFMV/forcegraph/errors"
	"github.com/TFMV/forcegraph/graph"
	"github.com/TFMV/forcegraph/models"
)

// distinctIDs returns the sorted distinct identifiers referenced by links.
func distinctIDs(links []models.Link) []string {
	set := make(map[string]bool)
	for _, l := range links {
		set[l.Source] = true
		set[l.Target] = true
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// randomLinks draws n links over an alphabet of size ids.
func randomLinks(r *rand.Rand, n, ids int) []models.Link {
	links := make([]models.Link, n)
	for i := range links {
		links[i] = models.Link{
			Source: fmt.Sprintf("n%d", r.Intn(ids)),
			Target: fmt.Sprintf("n%d", r.Intn(ids)),
		}
	}
	return links
}

func TestBuild_Properties(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		links := randomLinks(r, 1+r.Intn(40), 1+r.Intn(15))

		g, err := graph.Build(links, graph.DefaultOptions())
		require.NoError(t, err)
		require.NoError(t, g.Validate())

		// key set equals the distinct identifiers
		assert.Equal(t, distinctIDs(links), g.Names())

		// one node object per identifier
		objects := make(map[*models.Node]bool)
		for _, e := range g.Edges {
			objects[e.Source] = true
			objects[e.Target] = true
		}
		assert.Len(t, objects, len(distinctIDs(links)))

		// endpoints are the mapped instances under their original identifiers
		require.Len(t, g.Edges, len(links))
		for i, e := range g.Edges {
			assert.Same(t, g.Nodes[links[i].Source], e.Source)
			assert.Same(t, g.Nodes[links[i].Target], e.Target)
			assert.Equal(t, i, e.Index)
		}
	}
}

func TestBuild_Idempotent(t *testing.T) {
	t.Parallel()

	links := []models.Link{{Source: "A", Target: "B"}, {Source: "B", Target: "C"}, {Source: "C", Target: "A"}}
	copyA := append([]models.Link(nil), links...)
	copyB := append([]models.Link(nil), links...)

	g1, err := graph.Build(copyA, graph.DefaultOptions())
	require.NoError(t, err)
	g2, err := graph.Build(copyB, graph.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, g1.Names(), g2.Names())
	for name, n1 := range g1.Nodes {
		n2 := g2.Nodes[name]
		assert.Equal(t, n1.Name, n2.Name)
		assert.NotSame(t, n1, n2)
	}
}

func TestBuild_Triangle(t *testing.T) {
	g, err := graph.Build([]models.Link{{Source: "A", Target: "B"}, {Source: "B", Target: "C"}, {Source: "C", Target: "A"}}, graph.DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C"}, g.Names())
	require.Len(t, g.Edges, 3)
	for _, e := range g.Edges {
		assert.Same(t, g.Nodes[e.Source.Name], e.Source)
		assert.Same(t, g.Nodes[e.Target.Name], e.Target)
		assert.Equal(t, 2, e.Source.Weight)
	}
}

func TestBuild_SharedSource(t *testing.T) {
	g, err := graph.Build([]models.Link{{Source: "A", Target: "B"}, {Source: "A", Target: "C"}, {Source: "A", Target: "D"}}, graph.DefaultOptions())
	require.NoError(t, err)

	a := g.Nodes["A"]
	for _, e := range g.Edges {
		assert.Same(t, a, e.Source)
	}
	assert.Equal(t, 3, a.Weight)
	assert.Equal(t, []string{"A", "B", "C", "D"}, []string{g.Order[0].Name, g.Order[1].Name, g.Order[2].Name, g.Order[3].Name})
}

func TestBuild_Policies(t *testing.T) {
	t.Parallel()

	links := []models.Link{{Source: "A", Target: "B"}, {Source: "A", Target: "A"}, {Source: "A", Target: "B"}, {Source: "B", Target: "C"}}

	tests := []struct {
		name       string
		selfLoops  graph.Policy
		duplicates graph.Policy
		wantEdges  int
		wantErr    bool
	}{
		{name: "keep all", selfLoops: graph.PolicyKeep, duplicates: graph.PolicyKeep, wantEdges: 4},
		{name: "drop self-loops", selfLoops: graph.PolicyDrop, duplicates: graph.PolicyKeep, wantEdges: 3},
		{name: "drop duplicates", selfLoops: graph.PolicyKeep, duplicates: graph.PolicyDrop, wantEdges: 3},
		{name: "drop both", selfLoops: graph.PolicyDrop, duplicates: graph.PolicyDrop, wantEdges: 2},
		{name: "reject self-loops", selfLoops: graph.PolicyReject, duplicates: graph.PolicyKeep, wantErr: true},
		{name: "reject duplicates", selfLoops: graph.PolicyDrop, duplicates: graph.PolicyReject, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := graph.DefaultOptions()
			opts.SelfLoops = tt.selfLoops
			opts.Duplicates = tt.duplicates

			g, err := graph.Build(links, opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Len(t, g.Edges, tt.wantEdges)
			require.NoError(t, g.Validate())
		})
	}
}

func TestBuild_EmptyIdentifier(t *testing.T) {
	_, err := graph.Build([]models.Link{{Source: "A", Target: "B"}, {Source: "", Target: "C"}}, graph.DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestBuild_Empty(t *testing.T) {
	g, err := graph.Build(nil, graph.DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}

func TestBuild_Canvas(t *testing.T) {
	g, err := graph.Build([]models.Link{{Source: "a", Target: "b"}}, graph.Options{Width: 1024, Height: 768, LinkDistance: 50})
	require.NoError(t, err)
	assert.Equal(t, 1024.0, g.Width)
	assert.Equal(t, 768.0, g.Height)
	assert.Equal(t, 50.0, g.LinkDistance)
	assert.Equal(t, "links", g.Name)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    graph.Policy
		wantErr bool
	}{
		{in: "", want: graph.PolicyKeep},
		{in: "Drop", want: graph.PolicyDrop},
		{in: " reject ", want: graph.PolicyReject},
		{in: "dedupe", wantErr: true},
	}
	for _, tt := range tests {
		got, err := graph.ParsePolicy(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
