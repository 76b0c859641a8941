// Package resolve turns bare-name relationship targets into exactly one
// concrete element id, or rejects them. Resolution is deterministic and
// idempotent: identical index and configuration always yield identical
// outcomes, and the resolver never guesses between surviving candidates.
package resolve

import (
	"log/slog"
	"sort"
	"strings"

	"cartograph/core/config"
	"cartograph/core/element"
	"cartograph/core/relation"
)

// =============================================================================
// Match tiers
// =============================================================================

// Tier ranks match quality; lower is better.
type Tier int

const (
	// TierExact is a case-sensitive match on name tail or declared alias.
	TierExact Tier = iota

	// TierCaseInsensitive matches ignoring case.
	TierCaseInsensitive

	// TierPartial matches a prefix or substring of the name tail.
	TierPartial
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierCaseInsensitive:
		return "case_insensitive"
	case TierPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// Match is one plausible target for a bare name.
type Match struct {
	Element element.Element
	Tier    Tier
	Score   float64
}

// Rejection records a reference the resolver refused to bind, with the
// surviving candidate set for the run summary.
type Rejection struct {
	SourceID string        `json:"source_id"`
	Name     string        `json:"name"`
	Kind     relation.Kind `json:"kind"`
	Matches  []string      `json:"matches,omitempty"`
	Reason   string        `json:"reason"`
}

// Result carries resolution outcomes for one batch.
type Result struct {
	// Resolved holds every relationship with a concrete target, pass-through
	// and newly bound alike, in input order.
	Resolved []relation.Scored

	// Ambiguous lists references rejected with more than one surviving match.
	Ambiguous []Rejection

	// Unresolved lists references with no surviving match at all.
	Unresolved []Rejection
}

// =============================================================================
// Resolver
// =============================================================================

// Resolver disambiguates bare-name targets against the element index.
type Resolver struct {
	cfg    *config.Config
	index  *element.Index
	logger *slog.Logger
}

// NewResolver builds a resolver over the given immutable index.
func NewResolver(cfg *config.Config, index *element.Index, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{cfg: cfg, index: index, logger: logger}
}

// Resolve processes a batch of scored relationships. Already-resolved
// relationships pass through untouched; bare-name targets are bound to one
// element or rejected. Binding scales the relationship's confidence by the
// winning match's tier weight, so a partial-tier binding carries less
// confidence than an exact one. Rejected references never reach the graph.
func (r *Resolver) Resolve(rels []relation.Scored) Result {
	var result Result
	for _, rel := range rels {
		if rel.Resolved() {
			result.Resolved = append(result.Resolved, rel)
			continue
		}

		matches := r.Candidates(rel.SourceID, rel.TargetName)
		chosen, rejection := r.disambiguate(rel, matches)
		if rejection != nil {
			if len(rejection.Matches) == 0 {
				result.Unresolved = append(result.Unresolved, *rejection)
			} else {
				result.Ambiguous = append(result.Ambiguous, *rejection)
			}
			r.logger.Debug("reference rejected",
				"source", rel.SourceID,
				"name", rel.TargetName,
				"kind", rel.Kind.String(),
				"reason", rejection.Reason)
			continue
		}

		rel.TargetID = chosen.Element.ID
		rel.Confidence *= chosen.Score
		result.Resolved = append(result.Resolved, rel)
	}
	return result
}

// Candidates collects every plausible target for a bare name, tiered by
// match quality and sorted by (tier, id). The source element itself is
// never a candidate.
func (r *Resolver) Candidates(sourceID, name string) []Match {
	weights := r.cfg.Resolver.TierWeights
	seen := make(map[string]struct{})
	var matches []Match

	add := func(e element.Element, tier Tier, score float64) {
		if e.ID == sourceID {
			return
		}
		if _, dup := seen[e.ID]; dup {
			return
		}
		seen[e.ID] = struct{}{}
		matches = append(matches, Match{Element: e, Tier: tier, Score: score})
	}

	// Exact and case-insensitive tiers come from the prebuilt tail index.
	for _, e := range r.index.ByNameTail(name) {
		if e.NameTail() == name || hasAlias(e, name) {
			add(e, TierExact, weights.Exact)
		} else {
			add(e, TierCaseInsensitive, weights.CaseInsensitive)
		}
	}

	// Partial tier scans tails for prefix/substring containment.
	lowered := strings.ToLower(name)
	for _, e := range r.index.All() {
		tail := strings.ToLower(e.NameTail())
		if tail != lowered && strings.Contains(tail, lowered) {
			add(e, TierPartial, weights.Partial)
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Tier != matches[j].Tier {
			return matches[i].Tier < matches[j].Tier
		}
		return matches[i].Element.ID < matches[j].Element.ID
	})
	return matches
}

func hasAlias(e element.Element, name string) bool {
	for _, alias := range e.MetaList("aliases") {
		if alias == name {
			return true
		}
	}
	return false
}

// disambiguate applies the single-winner rule and the configured tie-break
// stages. A stage that narrows the set to one wins; a stage that matches
// nothing is skipped; anything still tied at the end is rejected.
func (r *Resolver) disambiguate(rel relation.Scored, matches []Match) (Match, *Rejection) {
	if len(matches) == 0 {
		return Match{}, &Rejection{
			SourceID: rel.SourceID,
			Name:     rel.TargetName,
			Kind:     rel.Kind,
			Reason:   "no matching element",
		}
	}

	top := topTier(matches)
	if len(top) == 1 {
		return top[0], nil
	}

	source, _ := r.index.ByID(rel.SourceID)
	for _, stage := range r.cfg.Resolver.TieBreaks {
		filtered := applyStage(stage, top, source, rel.ExpectedKind)
		if len(filtered) == 1 {
			return filtered[0], nil
		}
		if len(filtered) > 1 {
			top = filtered
		}
	}

	ids := make([]string, 0, len(top))
	for _, m := range top {
		ids = append(ids, m.Element.ID)
	}
	return Match{}, &Rejection{
		SourceID: rel.SourceID,
		Name:     rel.TargetName,
		Kind:     rel.Kind,
		Matches:  ids,
		Reason:   "ambiguous after tie-breaks",
	}
}

func topTier(matches []Match) []Match {
	best := matches[0].Tier
	var top []Match
	for _, m := range matches {
		if m.Tier == best {
			top = append(top, m)
		}
	}
	return top
}

func applyStage(stage string, matches []Match, source element.Element, hint element.Kind) []Match {
	var filtered []Match
	for _, m := range matches {
		switch stage {
		case config.TieBreakFile:
			if source.Path != "" && m.Element.Path == source.Path {
				filtered = append(filtered, m)
			}
		case config.TieBreakPackage:
			if m.Element.TopLevelPackage() == source.TopLevelPackage() {
				filtered = append(filtered, m)
			}
		case config.TieBreakKind:
			if hint != element.KindUnknown && m.Element.Kind == hint {
				filtered = append(filtered, m)
			}
		}
	}
	return filtered
}
