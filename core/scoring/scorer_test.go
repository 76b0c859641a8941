package scoring_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cartograph/core/config"
	"cartograph/core/element"
	"cartograph/core/relation"
	"cartograph/core/scoring"
)

func testIndex(t *testing.T) *element.Index {
	t.Helper()
	idx, err := element.NewIndex([]element.Element{
		{ID: "a", Kind: element.KindClass, QualifiedName: "calc.A", Path: "calc.py"},
		{ID: "b", Kind: element.KindClass, QualifiedName: "calc.B", Path: "calc.py"},
		{ID: "c", Kind: element.KindClass, QualifiedName: "calc.C", Path: "other.py"},
		{ID: "d", Kind: element.KindClass, QualifiedName: "legacy.D", Path: "legacy.py"},
	})
	require.NoError(t, err)
	return idx
}

// flatConfig zeroes every adjustment and sets unit weights and priors so a
// test can reason about one term at a time.
func flatConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Scoring.MultiDetectionBonus = 0
	cfg.Scoring.ProximityBonus = 0
	cfg.Scoring.CrossPackagePenalty = 0
	cfg.Scoring.MinConfidence = 0
	for kindName := range cfg.Scoring.Priors {
		cfg.Scoring.Priors[kindName] = 1.0
	}
	unit := 1.0
	for _, id := range config.KnownRuleIDs() {
		cfg.Rules[id] = config.RuleConfig{Weight: &unit}
	}
	return cfg
}

func cand(src, tgt, rule string, evidence float64) relation.Candidate {
	return relation.Candidate{
		SourceID: src,
		TargetID: tgt,
		Kind:     relation.KindImports,
		RuleID:   rule,
		Evidence: evidence,
	}
}

func TestScoreSingleCandidateIsWeightedEvidence(t *testing.T) {
	scorer := scoring.NewScorer(flatConfig(), testIndex(t))

	result := scorer.Score([]relation.Candidate{
		cand("a", "d", config.RuleImportReference, 0.8),
	})
	require.Len(t, result.Relationships, 1)
	assert.InDelta(t, 0.8, result.Relationships[0].Confidence, 1e-9)
	assert.Equal(t, 0, result.FilteredCount)
}

func TestScoreGoldenAdjustThenPrior(t *testing.T) {
	cfg := flatConfig()
	cfg.Scoring.MultiDetectionBonus = 0.10
	cfg.Scoring.ProximityBonus = 0.05
	cfg.Scoring.Priors["imports"] = 0.9

	scorer := scoring.NewScorer(cfg, testIndex(t))

	// Two distinct rules on a same-file pair, evidence 0.8 and 0.6 at unit
	// weight: mean 0.7, +0.10 corroboration, +0.05 same file, times 0.9.
	result := scorer.Score([]relation.Candidate{
		cand("a", "b", config.RuleImportReference, 0.8),
		cand("a", "b", config.RuleNameMatch, 0.6),
	})
	require.Len(t, result.Relationships, 1)
	assert.InDelta(t, (0.7+0.10+0.05)*0.9, result.Relationships[0].Confidence, 1e-9)
	assert.Equal(t, 1, result.MergedCount)
	assert.Equal(t, []string{config.RuleImportReference, config.RuleNameMatch}, result.Relationships[0].RuleIDs)
}

func TestScoreGoldenPriorFirst(t *testing.T) {
	cfg := flatConfig()
	cfg.Scoring.CombineOrder = config.CombinePriorFirst
	cfg.Scoring.MultiDetectionBonus = 0.10
	cfg.Scoring.ProximityBonus = 0.05
	cfg.Scoring.Priors["imports"] = 0.9

	scorer := scoring.NewScorer(cfg, testIndex(t))

	result := scorer.Score([]relation.Candidate{
		cand("a", "b", config.RuleImportReference, 0.8),
		cand("a", "b", config.RuleNameMatch, 0.6),
	})
	require.Len(t, result.Relationships, 1)
	assert.InDelta(t, 0.7*0.9+0.10+0.05, result.Relationships[0].Confidence, 1e-9)
}

func TestScoreWeightedMean(t *testing.T) {
	cfg := flatConfig()
	heavy, light := 0.9, 0.3
	cfg.Rules[config.RuleImportReference] = config.RuleConfig{Weight: &heavy}
	cfg.Rules[config.RuleNameMatch] = config.RuleConfig{Weight: &light}
	cfg.Scoring.MultiDetectionBonus = 0

	scorer := scoring.NewScorer(cfg, testIndex(t))

	// Same file pair with proximity zeroed; only the weighted mean remains.
	result := scorer.Score([]relation.Candidate{
		cand("a", "b", config.RuleImportReference, 1.0),
		cand("a", "b", config.RuleNameMatch, 0.0),
	})
	require.Len(t, result.Relationships, 1)
	want := (1.0*0.9 + 0.0*0.3) / (0.9 + 0.3)
	assert.InDelta(t, want, result.Relationships[0].Confidence, 1e-9)
}

func TestScoreProximity(t *testing.T) {
	cfg := flatConfig()
	cfg.Scoring.ProximityBonus = 0.05
	cfg.Scoring.CrossPackagePenalty = 0.08

	scorer := scoring.NewScorer(cfg, testIndex(t))

	call := func(tgt string) relation.Candidate {
		return relation.Candidate{
			SourceID: "a",
			TargetID: tgt,
			Kind:     relation.KindCalls,
			RuleID:   config.RuleCallReference,
			Evidence: 0.5,
		}
	}
	result := scorer.Score([]relation.Candidate{
		call("b"), // same file
		call("c"), // same package, other file
		call("d"), // cross package
	})
	require.Len(t, result.Relationships, 3)

	byTarget := map[string]float64{}
	for _, rel := range result.Relationships {
		byTarget[rel.TargetID] = rel.Confidence
	}
	assert.InDelta(t, 0.55, byTarget["b"], 1e-9)
	assert.InDelta(t, 0.525, byTarget["c"], 1e-9)
	assert.InDelta(t, 0.42, byTarget["d"], 1e-9)
}

func TestScoreImportsNotPenalizedCrossPackage(t *testing.T) {
	cfg := flatConfig()
	cfg.Scoring.CrossPackagePenalty = 0.08

	scorer := scoring.NewScorer(cfg, testIndex(t))

	// Same cross-package pair, two kinds: the call takes the penalty, the
	// import does not.
	result := scorer.Score([]relation.Candidate{
		cand("a", "d", config.RuleImportReference, 0.5),
		{
			SourceID: "a",
			TargetID: "d",
			Kind:     relation.KindCalls,
			RuleID:   config.RuleCallReference,
			Evidence: 0.5,
		},
	})
	require.Len(t, result.Relationships, 2)

	byKind := map[relation.Kind]float64{}
	for _, rel := range result.Relationships {
		byKind[rel.Kind] = rel.Confidence
	}
	assert.InDelta(t, 0.5, byKind[relation.KindImports], 1e-9)
	assert.InDelta(t, 0.42, byKind[relation.KindCalls], 1e-9)
}

func TestScoreAllZeroWeightsFallBackToUnweightedMean(t *testing.T) {
	cfg := flatConfig()
	zero := 0.0
	cfg.Rules[config.RuleImportReference] = config.RuleConfig{Weight: &zero}
	cfg.Rules[config.RuleNameMatch] = config.RuleConfig{Weight: &zero}
	cfg.Scoring.MultiDetectionBonus = 0

	scorer := scoring.NewScorer(cfg, testIndex(t))

	result := scorer.Score([]relation.Candidate{
		cand("a", "b", config.RuleImportReference, 0.8),
		cand("a", "b", config.RuleNameMatch, 0.6),
	})
	require.Len(t, result.Relationships, 1)
	confidence := result.Relationships[0].Confidence
	assert.False(t, math.IsNaN(confidence))
	assert.InDelta(t, 0.7, confidence, 1e-9)

	// A single zero-weight candidate keeps its evidence too.
	single := scorer.Score([]relation.Candidate{
		cand("a", "b", config.RuleImportReference, 0.8),
	})
	require.Len(t, single.Relationships, 1)
	assert.InDelta(t, 0.8, single.Relationships[0].Confidence, 1e-9)
}

func TestScoreConfidenceBounds(t *testing.T) {
	cfg := flatConfig()
	cfg.Scoring.MultiDetectionBonus = 1.0
	cfg.Scoring.ProximityBonus = 1.0

	scorer := scoring.NewScorer(cfg, testIndex(t))

	result := scorer.Score([]relation.Candidate{
		cand("a", "b", config.RuleImportReference, 1.0),
		cand("a", "b", config.RuleNameMatch, 1.0),
	})
	require.Len(t, result.Relationships, 1)
	assert.Equal(t, 1.0, result.Relationships[0].Confidence)
}

func TestScoreMonotonicInCorroboration(t *testing.T) {
	cfg := flatConfig()
	cfg.Scoring.MultiDetectionBonus = 0.10

	scorer := scoring.NewScorer(cfg, testIndex(t))

	single := scorer.Score([]relation.Candidate{
		cand("a", "b", config.RuleImportReference, 0.6),
	})
	corroborated := scorer.Score([]relation.Candidate{
		cand("a", "b", config.RuleImportReference, 0.6),
		cand("a", "b", config.RuleNameMatch, 0.6),
	})
	require.Len(t, single.Relationships, 1)
	require.Len(t, corroborated.Relationships, 1)
	assert.GreaterOrEqual(t,
		corroborated.Relationships[0].Confidence,
		single.Relationships[0].Confidence)
}

func TestScoreFiltersAndCounts(t *testing.T) {
	cfg := flatConfig()
	cfg.Scoring.MinConfidence = 0.5

	scorer := scoring.NewScorer(cfg, testIndex(t))

	result := scorer.Score([]relation.Candidate{
		cand("a", "b", config.RuleImportReference, 0.9),
		cand("a", "c", config.RuleImportReference, 0.2),
	})
	require.Len(t, result.Relationships, 1)
	assert.Equal(t, "b", result.Relationships[0].TargetID)
	assert.Equal(t, 1, result.FilteredCount)
}

func TestScoreUnresolvedGroupsKeepName(t *testing.T) {
	scorer := scoring.NewScorer(flatConfig(), testIndex(t))

	result := scorer.Score([]relation.Candidate{
		{
			SourceID:   "a",
			TargetName: "Calculator",
			Kind:       relation.KindReferencesDoc,
			RuleID:     config.RuleDocReference,
			Evidence:   0.65,
		},
	})
	require.Len(t, result.Relationships, 1)
	rel := result.Relationships[0]
	assert.False(t, rel.Resolved())
	assert.Equal(t, "Calculator", rel.TargetName)
}

func TestScoreDeterministicOrder(t *testing.T) {
	scorer := scoring.NewScorer(flatConfig(), testIndex(t))

	candidates := []relation.Candidate{
		cand("b", "a", config.RuleImportReference, 0.7),
		cand("a", "d", config.RuleImportReference, 0.7),
		cand("a", "b", config.RuleImportReference, 0.7),
	}
	first := scorer.Score(candidates)
	second := scorer.Score([]relation.Candidate{candidates[2], candidates[0], candidates[1]})
	assert.Equal(t, first.Relationships, second.Relationships)

	assert.Equal(t, "a", first.Relationships[0].SourceID)
	assert.Equal(t, "b", first.Relationships[0].TargetID)
}
