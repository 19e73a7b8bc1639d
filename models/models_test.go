package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphNodeReusesInstance(t *testing.T) {
	g := NewGraph("test")
	a1 := g.Node("a")
	a2 := g.Node("a")

	assert.Same(t, a1, a2)
	assert.Len(t, g.Order, 1)
	assert.Equal(t, 0, a1.Index)
	assert.Equal(t, 1, g.Node("b").Index)
}

func TestNewGraphDefaults(t *testing.T) {
	g := NewGraph("ring")
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, DefaultWidth, g.Width)
	assert.Equal(t, DefaultHeight, g.Height)
	assert.Equal(t, DefaultLinkDistance, g.LinkDistance)
	assert.NotEqual(t, g.ID, NewGraph("ring").ID)
}

func TestValidate(t *testing.T) {
	g := NewGraph("test")
	g.AddEdge(0, "a", "b")
	g.AddEdge(1, "b", "c")
	require.NoError(t, g.Validate())

	t.Run("foreign endpoint", func(t *testing.T) {
		bad := NewGraph("bad")
		bad.AddEdge(0, "a", "b")
		bad.Edges[0].Target = NewNode("b", 1)
		assert.Error(t, bad.Validate())
	})

	t.Run("orphan node", func(t *testing.T) {
		bad := NewGraph("bad")
		bad.AddEdge(0, "a", "b")
		bad.Node("lonely")
		assert.Error(t, bad.Validate())
	})
}

func TestSetPosition(t *testing.T) {
	n := NewNode("a", 0)
	assert.False(t, n.Placed())

	n.SetPosition(3, 4)
	assert.True(t, n.Placed())
	assert.Equal(t, Point{X: 3, Y: 4}, n.Position())
	assert.Equal(t, 3.0, n.PX)
	assert.Equal(t, 4.0, n.PY)
}

func TestQueries(t *testing.T) {
	g := NewGraph("test")
	g.AddEdge(0, "a", "b")
	g.AddEdge(1, "a", "c")
	g.AddEdge(2, "c", "a")

	assert.Len(t, g.OutgoingEdges("a"), 2)
	assert.Len(t, g.IncomingEdges("a"), 1)
	assert.Equal(t, []string{"a", "b", "c"}, g.Names())
	assert.Equal(t, []Link{{"a", "b"}, {"a", "c"}, {"c", "a"}}, g.Links())

	_, ok := g.FindNode("z")
	assert.False(t, ok)
}
