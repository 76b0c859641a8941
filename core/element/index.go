package element

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrDuplicateID = errors.New("duplicate element id")
	ErrUnknownID   = errors.New("unknown element id")
)

// Index is the read-only store of extracted elements for one run.
// It pre-builds the lookup structures the resolver and pair derivation
// need so all per-pair work stays cheap.
type Index struct {
	elements map[string]Element
	ids      []string // sorted, the total order for pair derivation

	// byTail maps lowercased name tails and aliases to sorted element ids.
	byTail map[string][]string
}

// NewIndex builds an index from a slice of elements. Duplicate ids and
// malformed elements are construction errors; an index is never partially
// valid.
func NewIndex(elements []Element) (*Index, error) {
	idx := &Index{
		elements: make(map[string]Element, len(elements)),
		byTail:   make(map[string][]string),
	}
	for _, e := range elements {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, exists := idx.elements[e.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
		}
		idx.elements[e.ID] = e
		idx.ids = append(idx.ids, e.ID)

		names := append([]string{e.NameTail()}, e.MetaList("aliases")...)
		for _, name := range names {
			key := strings.ToLower(name)
			idx.byTail[key] = append(idx.byTail[key], e.ID)
		}
	}
	sort.Strings(idx.ids)
	for key := range idx.byTail {
		sort.Strings(idx.byTail[key])
	}
	return idx, nil
}

// Len returns the number of indexed elements.
func (idx *Index) Len() int {
	return len(idx.ids)
}

// ByID returns the element with the given id.
func (idx *Index) ByID(id string) (Element, bool) {
	e, ok := idx.elements[id]
	return e, ok
}

// IDs returns all element ids in sorted order. The returned slice is shared;
// callers must not modify it.
func (idx *Index) IDs() []string {
	return idx.ids
}

// All returns every element in sorted-id order.
func (idx *Index) All() []Element {
	out := make([]Element, 0, len(idx.ids))
	for _, id := range idx.ids {
		out = append(out, idx.elements[id])
	}
	return out
}

// ByNameTail returns the elements whose name tail or alias equals the given
// name, compared case-insensitively, in sorted-id order.
func (idx *Index) ByNameTail(name string) []Element {
	ids := idx.byTail[strings.ToLower(name)]
	out := make([]Element, 0, len(ids))
	for _, id := range ids {
		out = append(out, idx.elements[id])
	}
	return out
}

// Pair is one ordered source/target pair in scope for rule evaluation.
type Pair struct {
	SourceID string
	TargetID string
}

// Validate checks both endpoints exist in the index.
func (idx *Index) ValidatePair(p Pair) error {
	if _, ok := idx.elements[p.SourceID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownID, p.SourceID)
	}
	if _, ok := idx.elements[p.TargetID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownID, p.TargetID)
	}
	return nil
}

// Pairs derives the ordered pair stream from the given source ids against
// the full index: for sorted ids, every (a, b) with a != b, in a total order
// independent of map iteration. Identical input always yields the identical
// stream, which chunking and candidate ordering rely on.
func (idx *Index) Pairs(sourceIDs []string) []Pair {
	sources := append([]string(nil), sourceIDs...)
	sort.Strings(sources)

	pairs := make([]Pair, 0, len(sources)*(len(idx.ids)-1))
	for _, src := range sources {
		for _, tgt := range idx.ids {
			if src == tgt {
				continue
			}
			pairs = append(pairs, Pair{SourceID: src, TargetID: tgt})
		}
	}
	return pairs
}
