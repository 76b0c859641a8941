// Package chunking partitions a finished relationship map into an ordered,
// budget-respecting sequence of chunks sized for a downstream consumer.
// Flattening follows a defined total order, so chunk boundaries are stable
// across repeated runs on the same input.
package chunking

import (
	"fmt"
	"sort"
	"strings"

	"cartograph/core/config"
	"cartograph/core/graph"
)

// =============================================================================
// Units
// =============================================================================

// UnitKind distinguishes the two atomic record types.
type UnitKind int

const (
	// UnitNode is one node record.
	UnitNode UnitKind = iota

	// UnitEdge is one relationship record.
	UnitEdge
)

// String returns the string representation of the unit kind.
func (k UnitKind) String() string {
	switch k {
	case UnitNode:
		return "node"
	case UnitEdge:
		return "edge"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for UnitKind.
func (k UnitKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Unit is one atomic record of the flattened map. A unit always lands in
// exactly one chunk and is never split.
type Unit struct {
	// Kind says whether this is a node or relationship record.
	Kind UnitKind `json:"kind"`

	// Ref is the node element id or edge id.
	Ref string `json:"ref"`

	// GroupKey is the hierarchical grouping key (file path or package).
	GroupKey string `json:"group_key"`

	// Body is the canonical flat rendering of the record, used for size
	// estimation and as the renderer's input.
	Body string `json:"body"`
}

// groupKeyNone groups elements with no value for the grouping key.
const groupKeyNone = "(ungrouped)"

type group struct {
	key   string
	units []Unit
}

// flatten produces the defined total order over the map's atomic units:
// node groups sorted by group key with nodes sorted by id inside, each
// group's outgoing edges trailing its nodes sorted by (source, target,
// kind). Iteration order of the underlying maps never leaks through.
func flatten(g *graph.Graph, groupBy string) []group {
	groups := make(map[string]*group)
	grab := func(key string) *group {
		if key == "" {
			key = groupKeyNone
		}
		if existing, ok := groups[key]; ok {
			return existing
		}
		created := &group{key: key}
		groups[key] = created
		return created
	}

	keyOf := func(n graph.Node) string {
		if groupBy == config.GroupByPackage {
			return n.Element.TopLevelPackage()
		}
		return n.Element.Path
	}

	nodes := g.Nodes()
	for _, n := range nodes {
		grp := grab(keyOf(n))
		grp.units = append(grp.units, Unit{
			Kind:     UnitNode,
			Ref:      n.ID(),
			GroupKey: grp.key,
			Body:     nodeBody(n),
		})
	}

	// Edges trail their source node's group, preserving locality.
	for _, e := range g.Edges(graph.EdgeFilter{}) {
		src, _ := g.Node(e.SourceID)
		grp := grab(keyOf(src))
		grp.units = append(grp.units, Unit{
			Kind:     UnitEdge,
			Ref:      string(e.ID),
			GroupKey: grp.key,
			Body:     edgeBody(e),
		})
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]group, 0, len(keys))
	for _, key := range keys {
		out = append(out, *groups[key])
	}
	return out
}

func nodeBody(n graph.Node) string {
	e := n.Element
	var sb strings.Builder
	fmt.Fprintf(&sb, "node|%s|%s|%s|%s|%d-%d",
		e.ID, e.Kind.String(), e.QualifiedName, e.Path, e.StartLine, e.EndLine)

	if len(e.Metadata) > 0 {
		keys := make([]string, 0, len(e.Metadata))
		for k := range e.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "|%s=%s", k, e.Metadata[k])
		}
	}
	return sb.String()
}

func edgeBody(e graph.Edge) string {
	return fmt.Sprintf("edge|%s|%s|%s|%.4f|%s",
		e.SourceID, e.TargetID, e.Kind.String(), e.Confidence,
		strings.Join(e.RuleIDs, "+"))
}
