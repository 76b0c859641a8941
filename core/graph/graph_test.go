package graph_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cartograph/core/element"
	"cartograph/core/graph"
	"cartograph/core/relation"
)

func seedIndex(t *testing.T, ids ...string) *element.Index {
	t.Helper()
	elements := make([]element.Element, 0, len(ids))
	for _, id := range ids {
		elements = append(elements, element.Element{
			ID:            id,
			Kind:          element.KindClass,
			QualifiedName: "pkg." + id,
			Path:          "pkg.py",
		})
	}
	idx, err := element.NewIndex(elements)
	require.NoError(t, err)
	return idx
}

func rel(src, tgt string, kind relation.Kind, confidence float64) relation.Scored {
	return relation.Scored{SourceID: src, TargetID: tgt, Kind: kind, Confidence: confidence}
}

func TestBuilderSeedsEveryElement(t *testing.T) {
	b := graph.NewBuilder(seedIndex(t, "a", "b", "c"))
	g := b.Finish()

	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, 0, g.EdgeCount())
	_, ok := g.Node("b")
	assert.True(t, ok)
}

func TestBuilderRejectsMissingEndpoint(t *testing.T) {
	b := graph.NewBuilder(seedIndex(t, "a", "b"))

	err := b.Add(rel("a", "ghost", relation.KindImports, 0.9))
	require.Error(t, err)

	var consistency *graph.ConsistencyError
	require.ErrorAs(t, err, &consistency)
	assert.Equal(t, "ghost", consistency.MissingID)
	assert.Contains(t, err.Error(), "ghost")
}

func TestBuilderMergesDuplicateTriples(t *testing.T) {
	b := graph.NewBuilder(seedIndex(t, "a", "b"))

	require.NoError(t, b.Add(rel("a", "b", relation.KindImports, 0.6)))
	require.NoError(t, b.Add(rel("a", "b", relation.KindImports, 0.8)))
	require.NoError(t, b.Add(rel("a", "b", relation.KindImports, 0.4)))

	assert.Equal(t, 2, b.Merged())
	g := b.Finish()
	edges := g.Edges(graph.EdgeFilter{})
	require.Len(t, edges, 1, "no parallel edges for one triple")
	assert.Equal(t, 0.8, edges[0].Confidence, "merge keeps the higher confidence")

	// Same endpoints under a different kind is a distinct edge.
	b2 := graph.NewBuilder(seedIndex(t, "a", "b"))
	require.NoError(t, b2.Add(rel("a", "b", relation.KindImports, 0.6)))
	require.NoError(t, b2.Add(rel("a", "b", relation.KindCalls, 0.6)))
	assert.Equal(t, 2, b2.Finish().EdgeCount())
}

func TestBuilderUnusableAfterFinish(t *testing.T) {
	b := graph.NewBuilder(seedIndex(t, "a", "b"))
	b.Finish()

	err := b.Add(rel("a", "b", relation.KindImports, 0.5))
	assert.ErrorIs(t, err, graph.ErrFinished)
}

func buildDiamond(t *testing.T) *graph.Graph {
	t.Helper()
	// a -> b -> d and a -> c, with an unconnected e.
	b := graph.NewBuilder(seedIndex(t, "a", "b", "c", "d", "e"))
	require.NoError(t, b.Add(rel("a", "b", relation.KindImports, 0.9)))
	require.NoError(t, b.Add(rel("a", "c", relation.KindCalls, 0.5)))
	require.NoError(t, b.Add(rel("b", "d", relation.KindImports, 0.7)))
	return b.Finish()
}

func TestEdgesSortedAndFiltered(t *testing.T) {
	g := buildDiamond(t)

	all := g.Edges(graph.EdgeFilter{})
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].SourceID)
	assert.Equal(t, "b", all[0].TargetID)
	assert.Equal(t, "c", all[1].TargetID)
	assert.Equal(t, "b", all[2].SourceID)

	imports := g.Edges(graph.EdgeFilter{Kinds: []relation.Kind{relation.KindImports}})
	assert.Len(t, imports, 2)

	confident := g.Edges(graph.EdgeFilter{MinConfidence: 0.6})
	assert.Len(t, confident, 2)
}

func TestIncident(t *testing.T) {
	g := buildDiamond(t)

	edges := g.Incident("b")
	require.Len(t, edges, 2)
	assert.Equal(t, "b", edges[0].SourceID, "outgoing first")
	assert.Equal(t, "d", edges[0].TargetID)
	assert.Equal(t, "a", edges[1].SourceID)

	assert.Empty(t, g.Incident("e"))
}

func TestNeighborhoodRequiresHopLimit(t *testing.T) {
	g := buildDiamond(t)

	_, err := g.Neighborhood("a", 0)
	assert.ErrorIs(t, err, graph.ErrHopLimit)
	_, err = g.Neighborhood("a", -3)
	assert.ErrorIs(t, err, graph.ErrHopLimit)
}

func TestNeighborhoodBoundedBFS(t *testing.T) {
	g := buildDiamond(t)

	one, err := g.Neighborhood("a", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, one.NodeCount(), "a, b, c within one hop")
	assert.Equal(t, 2, one.EdgeCount())

	two, err := g.Neighborhood("a", 2)
	require.NoError(t, err)
	assert.Equal(t, 4, two.NodeCount(), "d joins at two hops; e never does")
	assert.Equal(t, 3, two.EdgeCount())

	// Incoming edges are followed too.
	back, err := g.Neighborhood("d", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, back.NodeCount())
}

func TestNeighborhoodTerminatesOnCycle(t *testing.T) {
	b := graph.NewBuilder(seedIndex(t, "x", "y"))
	require.NoError(t, b.Add(rel("x", "y", relation.KindCalls, 0.8)))
	require.NoError(t, b.Add(rel("y", "x", relation.KindCalls, 0.8)))
	g := b.Finish()

	sub, err := g.Neighborhood("x", 100)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.NodeCount())
	assert.Equal(t, 2, sub.EdgeCount())
}

func TestNeighborhoodUnknownStart(t *testing.T) {
	g := buildDiamond(t)
	_, err := g.Neighborhood("ghost", 1)
	require.Error(t, err)
	assert.False(t, errors.Is(err, graph.ErrHopLimit))
}

func TestStats(t *testing.T) {
	g := buildDiamond(t)

	stats := g.Stats()
	assert.Equal(t, 5, stats.NodeCount)
	assert.Equal(t, 3, stats.EdgeCount)
	assert.Equal(t, 2, stats.EdgesByKind["imports"])
	assert.Equal(t, 1, stats.EdgesByKind["calls"])
	assert.InDelta(t, (0.9+0.5+0.7)/3, stats.MeanConfidence, 1e-9)
}

func TestNodesSorted(t *testing.T) {
	g := buildDiamond(t)

	nodes := g.Nodes()
	require.Len(t, nodes, 5)
	for i := 1; i < len(nodes); i++ {
		assert.Less(t, nodes[i-1].ID(), nodes[i].ID())
	}
}
