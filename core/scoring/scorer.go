// Package scoring merges duplicate relationship candidates and computes one
// calibrated confidence per (source, target, kind) group. Scoring is a pure
// function of the candidate set and configuration; identical inputs always
// produce identical output.
package scoring

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"cartograph/core/config"
	"cartograph/core/element"
	"cartograph/core/relation"
)

// Scorer computes calibrated confidences for candidate groups.
type Scorer struct {
	cfg   *config.Config
	index *element.Index
}

// NewScorer builds a scorer over the given immutable index.
func NewScorer(cfg *config.Config, index *element.Index) *Scorer {
	return &Scorer{cfg: cfg, index: index}
}

// Result carries the surviving relationships and the count of groups
// dropped below the minimum confidence. Drops are counted, never silent.
type Result struct {
	Relationships []relation.Scored
	FilteredCount int
	MergedCount   int
}

type groupKey struct {
	sourceID  string
	targetKey string
	kind      relation.Kind
}

// Score groups candidates by (source, target, kind), fuses each group into
// one confidence, and filters by the configured minimum. Output is sorted
// by (source, target key, kind) so downstream stages see a total order.
func (s *Scorer) Score(candidates []relation.Candidate) Result {
	groups := make(map[groupKey][]relation.Candidate)
	for _, c := range candidates {
		key := groupKey{sourceID: c.SourceID, targetKey: c.TargetKey(), kind: c.Kind}
		groups[key] = append(groups[key], c)
	}

	keys := make([]groupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.sourceID != b.sourceID {
			return a.sourceID < b.sourceID
		}
		if a.targetKey != b.targetKey {
			return a.targetKey < b.targetKey
		}
		return a.kind < b.kind
	})

	var result Result
	for _, key := range keys {
		group := groups[key]
		if len(group) > 1 {
			result.MergedCount += len(group) - 1
		}
		scored := s.fuse(key, group)
		if scored.Confidence < s.cfg.Scoring.MinConfidence {
			result.FilteredCount++
			continue
		}
		result.Relationships = append(result.Relationships, scored)
	}
	return result
}

// fuse reduces one candidate group to a single scored relationship:
// reliability-weighted mean of the raw evidence, plus the corroboration
// bonus and proximity adjustment, times the kind prior, clamped once.
func (s *Scorer) fuse(key groupKey, group []relation.Candidate) relation.Scored {
	sort.Slice(group, func(i, j int) bool {
		a, b := group[i], group[j]
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.Evidence > b.Evidence
	})

	evidence := make([]float64, len(group))
	weights := make([]float64, len(group))
	weightSum := 0.0
	distinctRules := make(map[string]struct{}, len(group))
	for i, c := range group {
		evidence[i] = c.Evidence
		weights[i] = s.cfg.RuleWeight(c.RuleID)
		weightSum += weights[i]
		distinctRules[c.RuleID] = struct{}{}
	}
	if weightSum == 0 {
		// All-zero weights would make the weighted mean NaN.
		weights = nil
	}
	base := stat.Mean(evidence, weights)

	adjustment := 0.0
	if len(distinctRules) >= 2 {
		adjustment += s.cfg.Scoring.MultiDetectionBonus
	}
	adjustment += s.proximity(group[0])

	prior := s.cfg.Prior(key.kind.String())

	var confidence float64
	switch s.cfg.Scoring.CombineOrder {
	case config.CombinePriorFirst:
		confidence = base*prior + adjustment
	default:
		confidence = (base + adjustment) * prior
	}
	confidence = clamp01(confidence)

	ruleIDs := make([]string, 0, len(distinctRules))
	for id := range distinctRules {
		ruleIDs = append(ruleIDs, id)
	}
	sort.Strings(ruleIDs)

	scored := relation.Scored{
		SourceID:   key.sourceID,
		TargetID:   group[0].TargetID,
		TargetName: group[0].TargetName,
		Kind:       key.kind,
		Confidence: confidence,
		RuleIDs:    ruleIDs,
	}
	for _, c := range group {
		if scored.Location == nil && c.Location != nil {
			scored.Location = c.Location
		}
		if scored.ExpectedKind == element.KindUnknown && c.ExpectedKind != element.KindUnknown {
			scored.ExpectedKind = c.ExpectedKind
		}
	}
	return scored
}

// proximity computes the contextual adjustment for resolved pairs: same
// file earns the full bonus, same top-level package half of it, and
// cross-package pairs the penalty. Unresolved name targets get none, and
// import relationships cross packages by nature, so distance carries no
// signal for them.
func (s *Scorer) proximity(c relation.Candidate) float64 {
	if c.TargetID == "" {
		return 0
	}
	source, okSrc := s.index.ByID(c.SourceID)
	target, okTgt := s.index.ByID(c.TargetID)
	if !okSrc || !okTgt {
		return 0
	}
	switch {
	case source.Path != "" && source.Path == target.Path:
		return s.cfg.Scoring.ProximityBonus
	case source.TopLevelPackage() == target.TopLevelPackage():
		return s.cfg.Scoring.ProximityBonus / 2
	case c.Kind == relation.KindImports:
		return 0
	default:
		return -s.cfg.Scoring.CrossPackagePenalty
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
