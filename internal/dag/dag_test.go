package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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
	assert.Len(t, g.nodes, 1)
	nodeA, ok := g.nodes["a"]
	require.True(t, ok)
	assert.Equal(t, "a", nodeA.id)
	assert.NotNil(t, nodeA.deps)
	assert.NotNil(t, nodeA.dependents)
	assert.Equal(t, 0, nodeA.index)

	g.AddNode("a") // Test idempotency
	assert.Len(t, g.nodes, 1)

	g.AddNode("b")
	assert.Len(t, g.nodes, 2)
	_, ok = g.nodes["b"]
	assert.True(t, ok)
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("a", "b") // b depends on a
		require.NoError(t, err)

		nodeA := g.nodes["a"]
		nodeB := g.nodes["b"]

		assert.Contains(t, nodeA.dependents, "b")
		assert.Equal(t, nodeB, nodeA.dependents["b"])
		assert.Contains(t, nodeB.deps, "a")
		assert.Equal(t, nodeA, nodeB.deps["a"])
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")

		err = g.AddEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")

		require.NoError(t, g.AddEdge("a", "a"))
		assert.ErrorIs(t, g.DetectCycles(), ErrCycle)
	})
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		g := New()
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("graph with nodes but no edges has no cycles", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		g.AddNode("c")
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		g.AddNode("c")
		g.AddNode("d")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("a", "c")) // Transitive edge
		require.NoError(t, g.AddEdge("c", "d"))
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("simple direct cycle is detected", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a")) // Cycle
		err := g.DetectCycles()
		assert.Error(t, err)
		assert.ErrorContains(t, err, "cycle detected")
	})

	t.Run("longer cycle is detected", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		g.AddNode("c")
		g.AddNode("d")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("c", "d"))
		require.NoError(t, g.AddEdge("d", "a")) // Cycle back to the start
		err := g.DetectCycles()
		assert.ErrorIs(t, err, ErrCycle)
		assert.EqualError(t, err, "cycle detected: a -> b -> c -> d -> a")
	})

	t.Run("cycle in a disjoint component is detected", func(t *testing.T) {
		g := New()
		// Component 1 (valid)
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))

		// Component 2 (has a cycle)
		g.AddNode("x")
		g.AddNode("y")
		g.AddNode("z")
		require.NoError(t, g.AddEdge("x", "y"))
		require.NoError(t, g.AddEdge("y", "z"))
		require.NoError(t, g.AddEdge("z", "y")) // Cycle

		err := g.DetectCycles()
		assert.Error(t, err)
		assert.ErrorContains(t, err, "cycle detected")
	})
}

func chain(t *testing.T, edges ...[2]string) *Graph {
	t.Helper()
	g := New()
	for _, e := range edges {
		g.AddNode(e[0])
		g.AddNode(e[1])
		require.NoError(t, g.AddEdge(e[0], e[1]))
	}
	return g
}

func TestReachability(t *testing.T) {
	// fetch -> clean -> train -> report, fetch -> report
	g := chain(t,
		[2]string{"fetch", "clean"},
		[2]string{"clean", "train"},
		[2]string{"train", "report"},
		[2]string{"fetch", "report"},
	)
	g.AddNode("unrelated")

	up, err := g.Ancestors("report")
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch", "clean", "train"}, up)

	down, err := g.Descendants("clean")
	require.NoError(t, err)
	assert.Equal(t, []string{"train", "report"}, down)

	_, err = g.Ancestors("dne")
	assert.ErrorContains(t, err, "node not found")
}

func TestReachability_ToleratesCycles(t *testing.T) {
	g := chain(t, [2]string{"a", "b"}, [2]string{"b", "a"})
	up, err := g.Ancestors("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, up)
}

func TestTopologicalOrder(t *testing.T) {
	t.Run("insertion order breaks ties", func(t *testing.T) {
		g := New()
		for _, id := range []string{"report", "b", "a", "root"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("root", "a"))
		require.NoError(t, g.AddEdge("root", "b"))
		require.NoError(t, g.AddEdge("a", "report"))
		require.NoError(t, g.AddEdge("b", "report"))

		order, err := g.TopologicalOrder()
		require.NoError(t, err)
		assert.Equal(t, []string{"root", "b", "a", "report"}, order)
	})

	t.Run("cycles are rejected", func(t *testing.T) {
		g := chain(t, [2]string{"a", "b"}, [2]string{"b", "a"})
		_, err := g.TopologicalOrder()
		assert.ErrorIs(t, err, ErrCycle)
	})
}
