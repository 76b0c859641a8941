package graph

import (
	"errors"
	"fmt"

	"cartograph/core/element"
	"cartograph/core/relation"
)

// ConsistencyError signals a relationship referencing an element id absent
// from the index. This is a contract violation by an upstream collaborator
// (a pipeline-ordering bug, not a data-quality issue) and always aborts
// the run.
type ConsistencyError struct {
	MissingID string
	SourceID  string
	TargetID  string
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf(
		"data consistency error: relationship %s -> %s references element %q missing from the index",
		e.SourceID, e.TargetID, e.MissingID)
}

// ErrFinished is returned when a builder is used after Finish.
var ErrFinished = errors.New("graph builder already finished")

// Builder accumulates resolved, scored relationships into a graph. Every
// index element becomes a node up front, so the finished graph is the map
// of the whole project, edges or not.
type Builder struct {
	graph    *Graph
	finished bool
	merged   int
}

// NewBuilder seeds a builder with one node per index element.
func NewBuilder(index *element.Index) *Builder {
	g := newGraph()
	for _, e := range index.All() {
		g.nodes[e.ID] = Node{Element: e}
	}
	return &Builder{graph: g}
}

// Add inserts one relationship. A missing endpoint raises a fatal
// *ConsistencyError naming the absent id. A duplicate (source, target,
// kind) triple merges by keeping the higher confidence under the original
// edge identity; parallel edges are never created.
func (b *Builder) Add(rel relation.Scored) error {
	if b.finished {
		return ErrFinished
	}
	if _, ok := b.graph.nodes[rel.SourceID]; !ok {
		return &ConsistencyError{MissingID: rel.SourceID, SourceID: rel.SourceID, TargetID: rel.TargetID}
	}
	if _, ok := b.graph.nodes[rel.TargetID]; !ok {
		return &ConsistencyError{MissingID: rel.TargetID, SourceID: rel.SourceID, TargetID: rel.TargetID}
	}

	id := MakeEdgeID(rel.SourceID, rel.TargetID, rel.Kind)
	if existing, ok := b.graph.edges[id]; ok {
		b.merged++
		if rel.Confidence > existing.Confidence {
			existing.Confidence = rel.Confidence
			existing.RuleIDs = rel.RuleIDs
			existing.Location = rel.Location
		}
		return nil
	}

	b.graph.edges[id] = &Edge{
		ID:         id,
		SourceID:   rel.SourceID,
		TargetID:   rel.TargetID,
		Kind:       rel.Kind,
		Confidence: rel.Confidence,
		RuleIDs:    rel.RuleIDs,
		Location:   rel.Location,
	}
	b.graph.out[rel.SourceID] = append(b.graph.out[rel.SourceID], id)
	b.graph.in[rel.TargetID] = append(b.graph.in[rel.TargetID], id)
	return nil
}

// Merged returns how many submissions merged into existing edges.
func (b *Builder) Merged() int { return b.merged }

// Finish transfers ownership of the graph to the caller. The builder is
// unusable afterwards.
func (b *Builder) Finish() *Graph {
	b.finished = true
	g := b.graph
	b.graph = nil
	return g
}
