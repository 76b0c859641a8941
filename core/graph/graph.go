// Package graph accumulates resolved, scored relationships into a consistent
// directed graph and exposes the query surface consumed by rendering and
// chunking collaborators.
//
// The graph is an arena of nodes and edges addressed by stable ids; edges
// incident to a node are a derived adjacency index, never back-references,
// so there is no ownership cycle anywhere in the structure.
package graph

import (
	"errors"
	"fmt"
	"sort"

	"cartograph/core/element"
	"cartograph/core/relation"
)

// =============================================================================
// Node and Edge
// =============================================================================

// Node wraps one element. Adjacency lives in the graph's derived indexes.
type Node struct {
	Element element.Element
}

// ID returns the wrapped element's id.
func (n Node) ID() string { return n.Element.ID }

// EdgeID is the stable identity of an edge, derived from its
// (source, target, kind) triple.
type EdgeID string

// MakeEdgeID builds the deterministic identity for a triple.
func MakeEdgeID(sourceID, targetID string, kind relation.Kind) EdgeID {
	return EdgeID(sourceID + "->" + targetID + "#" + kind.String())
}

// Edge is one directed relationship. Edges are immutable once added; merges
// replace the stored confidence, never the identity.
type Edge struct {
	ID         EdgeID             `json:"id"`
	SourceID   string             `json:"source_id"`
	TargetID   string             `json:"target_id"`
	Kind       relation.Kind      `json:"kind"`
	Confidence float64            `json:"confidence"`
	RuleIDs    []string           `json:"rule_ids,omitempty"`
	Location   *relation.Location `json:"location,omitempty"`
}

// =============================================================================
// Graph
// =============================================================================

// ErrHopLimit is returned when a neighborhood query omits the mandatory
// positive hop limit.
var ErrHopLimit = errors.New("neighborhood hop limit must be positive")

// Graph is the finished relationship map. It is handed to the output
// collaborator by single ownership and never mutated afterward.
type Graph struct {
	nodes map[string]Node
	edges map[EdgeID]*Edge

	// Derived adjacency: node id -> incident edge ids.
	out map[string][]EdgeID
	in  map[string][]EdgeID
}

func newGraph() *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		edges: make(map[EdgeID]*Edge),
		out:   make(map[string][]EdgeID),
		in:    make(map[string][]EdgeID),
	}
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the node for the given element id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes enumerates every node in sorted-id order.
func (g *Graph) Nodes() []Node {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes[id])
	}
	return out
}

// EdgeFilter narrows edge enumeration. The zero value matches everything.
type EdgeFilter struct {
	// Kinds restricts to the listed relationship kinds; empty means all.
	Kinds []relation.Kind

	// MinConfidence drops edges scoring below it.
	MinConfidence float64
}

func (f EdgeFilter) matches(e *Edge) bool {
	if e.Confidence < f.MinConfidence {
		return false
	}
	if len(f.Kinds) == 0 {
		return true
	}
	for _, k := range f.Kinds {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Edges enumerates edges passing the filter, sorted by
// (source, target, kind).
func (g *Graph) Edges(filter EdgeFilter) []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if filter.matches(e) {
			out = append(out, *e)
		}
	}
	sortEdges(out)
	return out
}

// Incident returns every edge touching the given node, outgoing then
// incoming, each sorted by (source, target, kind).
func (g *Graph) Incident(nodeID string) []Edge {
	var out []Edge
	for _, list := range [][]EdgeID{g.out[nodeID], g.in[nodeID]} {
		batch := make([]Edge, 0, len(list))
		for _, id := range list {
			batch = append(batch, *g.edges[id])
		}
		sortEdges(batch)
		out = append(out, batch...)
	}
	return out
}

// Neighborhood computes the induced subgraph reachable from the start node
// within maxHops hops, following edges in both directions. The hop limit is
// mandatory so cyclic graphs cannot trigger unbounded walks.
func (g *Graph) Neighborhood(startID string, maxHops int) (*Graph, error) {
	if maxHops <= 0 {
		return nil, ErrHopLimit
	}
	start, ok := g.nodes[startID]
	if !ok {
		return nil, fmt.Errorf("node %s not in graph", startID)
	}

	visited := map[string]struct{}{startID: {}}
	frontier := []string{startID}
	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			for _, edgeID := range append(append([]EdgeID{}, g.out[id]...), g.in[id]...) {
				e := g.edges[edgeID]
				for _, neighbor := range []string{e.SourceID, e.TargetID} {
					if _, seen := visited[neighbor]; !seen {
						visited[neighbor] = struct{}{}
						next = append(next, neighbor)
					}
				}
			}
		}
		frontier = next
	}

	sub := newGraph()
	sub.nodes[start.ID()] = start
	for id := range visited {
		sub.nodes[id] = g.nodes[id]
	}
	for edgeID, e := range g.edges {
		_, srcIn := visited[e.SourceID]
		_, tgtIn := visited[e.TargetID]
		if srcIn && tgtIn {
			copied := *e
			sub.edges[edgeID] = &copied
			sub.out[e.SourceID] = append(sub.out[e.SourceID], edgeID)
			sub.in[e.TargetID] = append(sub.in[e.TargetID], edgeID)
		}
	}
	return sub, nil
}

// Stats summarizes the graph for run summaries and front ends.
type Stats struct {
	NodeCount      int            `json:"node_count"`
	EdgeCount      int            `json:"edge_count"`
	EdgesByKind    map[string]int `json:"edges_by_kind"`
	MeanConfidence float64        `json:"mean_confidence"`
}

// Stats computes summary statistics over the whole graph.
func (g *Graph) Stats() Stats {
	s := Stats{
		NodeCount:   len(g.nodes),
		EdgeCount:   len(g.edges),
		EdgesByKind: make(map[string]int),
	}
	total := 0.0
	for _, e := range g.edges {
		s.EdgesByKind[e.Kind.String()]++
		total += e.Confidence
	}
	if len(g.edges) > 0 {
		s.MeanConfidence = total / float64(len(g.edges))
	}
	return s
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		return a.Kind < b.Kind
	})
}
