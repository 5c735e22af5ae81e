package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/notegrid/internal/node"
)

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.NotNil(t, g.nodes)
	assert.Empty(t, g.nodes)
}

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("a")
	assert.Equal(t, 1, g.Len())
	require.True(t, g.Has("a"))

	g.AddNode("a") // Test idempotency
	assert.Equal(t, 1, g.Len())

	g.AddNode("b")
	assert.Equal(t, 2, g.Len())
	assert.True(t, g.Has("b"))
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("a", "b") // b depends on a
		require.NoError(t, err)

		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []node.ID{"a"}, deps)

		dependants, err := g.Dependants("a")
		require.NoError(t, err)
		assert.Equal(t, []node.ID{"b"}, dependants)
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")

		err = g.AddEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")

		err = g.AddEdge("a", "a")
		assert.ErrorContains(t, err, "self-referential edge")
	})
}

func TestRemoveNode(t *testing.T) {
	g := New()
	g.AddNode("a")
	g.AddNode("b")
	g.AddNode("c")
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))

	g.RemoveNode("b")

	assert.False(t, g.Has("b"))
	dependants, err := g.Dependants("a")
	require.NoError(t, err)
	assert.Empty(t, dependants)

	deps, err := g.Dependencies("c")
	require.NoError(t, err)
	assert.Empty(t, deps)

	// Removing an unknown id is a no-op.
	g.RemoveNode("dne")
	assert.Equal(t, 2, g.Len())
}

func TestDownstream(t *testing.T) {
	g := New()
	for _, id := range []node.ID{"a", "b", "c", "d", "e"} {
		g.AddNode(id)
	}
	require.NoError(t, g.AddEdge("a", "b"))
	require.NoError(t, g.AddEdge("b", "c"))
	require.NoError(t, g.AddEdge("c", "d"))
	// e is independent of the a-b-c-d chain.

	t.Run("transitive closure from a single seed", func(t *testing.T) {
		reached := g.Downstream([]node.ID{"a"})
		assert.Len(t, reached, 3)
		assert.Contains(t, reached, node.ID("b"))
		assert.Contains(t, reached, node.ID("c"))
		assert.Contains(t, reached, node.ID("d"))
		assert.NotContains(t, reached, node.ID("a"))
		assert.NotContains(t, reached, node.ID("e"))
	})

	t.Run("leaf seed reaches nothing", func(t *testing.T) {
		assert.Empty(t, g.Downstream([]node.ID{"d"}))
	})

	t.Run("unknown seed is ignored", func(t *testing.T) {
		assert.Empty(t, g.Downstream([]node.ID{"dne"}))
	})
}

func TestCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		g := New()
		assert.Empty(t, g.Cycles())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := New()
		for _, id := range []node.ID{"a", "b", "c", "d"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("a", "c")) // Transitive edge
		require.NoError(t, g.AddEdge("c", "d"))
		assert.Empty(t, g.Cycles())
	})

	t.Run("simple direct cycle is detected", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a")) // Cycle

		cycles := g.Cycles()
		require.Len(t, cycles, 1)
		assert.Equal(t, []node.ID{"a", "b"}, cycles[0])
	})

	t.Run("longer cycle is detected", func(t *testing.T) {
		g := New()
		for _, id := range []node.ID{"a", "b", "c", "d"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("c", "d"))
		require.NoError(t, g.AddEdge("d", "a")) // Cycle back to the start

		cycles := g.Cycles()
		require.Len(t, cycles, 1)
		assert.Equal(t, []node.ID{"a", "b", "c", "d"}, cycles[0])
	})

	t.Run("cycle does not swallow independent nodes", func(t *testing.T) {
		g := New()
		for _, id := range []node.ID{"a", "b", "c", "d"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a")) // Cycle between a and b
		require.NoError(t, g.AddEdge("b", "c")) // c hangs off the cycle
		// d is fully independent.

		cycles := g.Cycles()
		require.Len(t, cycles, 1)
		assert.Equal(t, []node.ID{"a", "b"}, cycles[0])
	})

	t.Run("two disjoint cycles are both reported", func(t *testing.T) {
		g := New()
		for _, id := range []node.ID{"a", "b", "x", "y"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a"))
		require.NoError(t, g.AddEdge("x", "y"))
		require.NoError(t, g.AddEdge("y", "x"))

		cycles := g.Cycles()
		require.Len(t, cycles, 2)
		assert.Equal(t, []node.ID{"a", "b"}, cycles[0])
		assert.Equal(t, []node.ID{"x", "y"}, cycles[1])
	})
}
