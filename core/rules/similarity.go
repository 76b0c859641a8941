package rules

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"cartograph/core/config"
	"cartograph/core/element"
	"cartograph/core/relation"
)

// profileCacheSize bounds the per-run trigram profile memo. Profiles are
// recomputed on eviction, so the cache only affects speed, never results.
const profileCacheSize = 4096

// similarityRule emits a content_similar candidate when the trigram Jaccard
// similarity of two elements' extracted text reaches the threshold.
// Evidence equals the similarity itself, so stronger overlap scores higher.
type similarityRule struct {
	threshold float64
	profiles  *lru.Cache[string, map[string]struct{}]
}

func newSimilarityRule(threshold float64) *similarityRule {
	// Error is only possible for non-positive sizes.
	cache, _ := lru.New[string, map[string]struct{}](profileCacheSize)
	return &similarityRule{
		threshold: threshold,
		profiles:  cache,
	}
}

func (r *similarityRule) ID() string { return config.RuleContentSimilarity }

func (r *similarityRule) Applicable(source, target element.Element) bool {
	return source.Meta(metaText) != "" && target.Meta(metaText) != ""
}

func (r *similarityRule) Detect(source, target element.Element) ([]relation.Candidate, error) {
	similarity := jaccard(r.profile(source), r.profile(target))
	if similarity < r.threshold {
		return nil, nil
	}
	return []relation.Candidate{{
		SourceID: source.ID,
		TargetID: target.ID,
		Kind:     relation.KindContentSimilar,
		RuleID:   r.ID(),
		Evidence: similarity,
	}}, nil
}

// profile returns the element's trigram set, memoized by element id.
func (r *similarityRule) profile(e element.Element) map[string]struct{} {
	if cached, ok := r.profiles.Get(e.ID); ok {
		return cached
	}
	p := trigrams(e.Meta(metaText))
	r.profiles.Add(e.ID, p)
	return p
}

// trigrams builds the set of lowercase character trigrams, with whitespace
// runs collapsed so formatting differences do not dominate.
func trigrams(text string) map[string]struct{} {
	normalized := strings.ToLower(strings.Join(strings.Fields(text), " "))
	set := make(map[string]struct{})
	runes := []rune(normalized)
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	shared := 0
	for t := range small {
		if _, ok := large[t]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}
