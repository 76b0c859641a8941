// Package config defines the explicit configuration value threaded through
// every analysis stage. Configuration is loaded once, validated, and never
// mutated for the duration of a run; there is no ambient global state.
package config

import (
	"fmt"
	"time"
)

// Rule ids recognized by the rules section. The rules package registers
// detectors under these same ids.
const (
	RuleImportReference   = "import_reference"
	RuleInheritance       = "inheritance"
	RuleCallReference     = "call_reference"
	RuleDocReference      = "doc_reference"
	RuleNameMatch         = "name_match"
	RuleContentSimilarity = "content_similarity"
)

// KnownRuleIDs returns every built-in rule id.
func KnownRuleIDs() []string {
	return []string{
		RuleImportReference,
		RuleInheritance,
		RuleCallReference,
		RuleDocReference,
		RuleNameMatch,
		RuleContentSimilarity,
	}
}

// Combine orders for the confidence arithmetic. The default applies the
// corroboration bonus and proximity adjustment before the kind prior;
// prior_first multiplies the prior into the weighted mean before any
// adjustment. Both clamp exactly once, at the end.
const (
	CombineAdjustThenPrior = "adjust_then_prior"
	CombinePriorFirst      = "prior_first"
)

// Tie-break stage names for cross-reference resolution.
const (
	TieBreakFile    = "file"
	TieBreakPackage = "package"
	TieBreakKind    = "kind"
)

// Estimator and grouping names for the chunking engine.
const (
	EstimatorChars = "chars"
	EstimatorWords = "words"

	GroupByFile    = "file"
	GroupByPackage = "package"
)

// Config is the complete, immutable run configuration.
type Config struct {
	Rules    map[string]RuleConfig `yaml:"rules"`
	Scoring  ScoringConfig         `yaml:"scoring"`
	Resolver ResolverConfig        `yaml:"resolver"`
	Chunking ChunkingConfig        `yaml:"chunking"`
	Run      RunConfig             `yaml:"run"`
	Scope    ScopeConfig           `yaml:"scope"`
}

// RuleConfig enables and weights one detection rule. Nil fields fall back
// to the built-in defaults so a config file only names what it overrides.
type RuleConfig struct {
	// Enabled toggles the rule for the run (default true).
	Enabled *bool `yaml:"enabled"`

	// Weight is the rule's reliability weight in [0,1] used by the scorer's
	// weighted average.
	Weight *float64 `yaml:"weight"`

	// Threshold gates signal emission for threshold-based rules
	// (content_similarity); ignored by the others.
	Threshold *float64 `yaml:"threshold"`
}

// ScoringConfig tunes the confidence arithmetic.
type ScoringConfig struct {
	// MultiDetectionBonus is added when >= 2 distinct rules corroborate.
	MultiDetectionBonus float64 `yaml:"multi_detection_bonus"`

	// ProximityBonus is added for same-file pairs; same top-level package
	// pairs receive half of it.
	ProximityBonus float64 `yaml:"proximity_bonus"`

	// CrossPackagePenalty is subtracted for cross-package pairs.
	CrossPackagePenalty float64 `yaml:"cross_package_penalty"`

	// Priors weight each relationship kind, keyed by kind name.
	Priors map[string]float64 `yaml:"priors"`

	// MinConfidence drops relationships scoring below it; drops are counted
	// in the run summary, never silent.
	MinConfidence float64 `yaml:"min_confidence"`

	// CombineOrder selects the arithmetic order (see Combine constants).
	CombineOrder string `yaml:"combine_order"`
}

// TierWeights weight the resolver's match-quality tiers. The winning
// match's tier weight scales the bound relationship's confidence.
type TierWeights struct {
	Exact           float64 `yaml:"exact"`
	CaseInsensitive float64 `yaml:"case_insensitive"`
	Partial         float64 `yaml:"partial"`
}

// ResolverConfig tunes cross-reference resolution.
type ResolverConfig struct {
	TierWeights TierWeights `yaml:"tier_weights"`

	// TieBreaks is the ordered list of disambiguation stages applied to
	// top-tier ties before rejecting a reference as ambiguous.
	TieBreaks []string `yaml:"tie_breaks"`
}

// ChunkingConfig tunes map partitioning.
type ChunkingConfig struct {
	// Budget is the per-chunk size budget in estimator units.
	Budget int `yaml:"budget"`

	// Estimator selects the size estimation heuristic (chars, words).
	Estimator string `yaml:"estimator"`

	// GroupBy selects the hierarchical grouping key (file, package).
	GroupBy string `yaml:"group_by"`
}

// RunConfig tunes orchestration.
type RunConfig struct {
	// Workers shards pair evaluation; 1 disables parallelism.
	Workers int `yaml:"workers"`

	// SoftDeadline stops issuing new pair evaluations once elapsed and
	// marks the result partial. A Go duration string ("30s"); empty means
	// no deadline.
	SoftDeadline string `yaml:"soft_deadline"`

	// MaxRuleFailures auto-disables a rule after this many execution
	// errors in one run.
	MaxRuleFailures int `yaml:"max_rule_failures"`
}

// ScopeConfig restricts which elements originate pairs.
type ScopeConfig struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Rules: map[string]RuleConfig{},
		Scoring: ScoringConfig{
			MultiDetectionBonus: 0.10,
			ProximityBonus:      0.05,
			CrossPackagePenalty: 0.05,
			Priors: map[string]float64{
				"imports":         0.95,
				"inherits":        1.0,
				"calls":           0.90,
				"references_doc":  0.85,
				"name_match":      0.70,
				"content_similar": 0.75,
				"other":           0.60,
			},
			MinConfidence: 0.30,
			CombineOrder:  CombineAdjustThenPrior,
		},
		Resolver: ResolverConfig{
			TierWeights: TierWeights{
				Exact:           1.0,
				CaseInsensitive: 0.8,
				Partial:         0.5,
			},
			TieBreaks: []string{TieBreakFile, TieBreakPackage, TieBreakKind},
		},
		Chunking: ChunkingConfig{
			Budget:    2000,
			Estimator: EstimatorChars,
			GroupBy:   GroupByFile,
		},
		Run: RunConfig{
			Workers:         4,
			SoftDeadline:    "",
			MaxRuleFailures: 5,
		},
		Scope: ScopeConfig{},
	}
}

// Default rule reliability weights and thresholds, used when a rule's
// config leaves them unset.
var defaultRuleWeights = map[string]float64{
	RuleImportReference:   0.90,
	RuleInheritance:       0.95,
	RuleCallReference:     0.85,
	RuleDocReference:      0.70,
	RuleNameMatch:         0.60,
	RuleContentSimilarity: 0.65,
}

const defaultSimilarityThreshold = 0.5

// RuleEnabled reports whether the given rule is enabled.
func (c *Config) RuleEnabled(ruleID string) bool {
	rc, ok := c.Rules[ruleID]
	if !ok || rc.Enabled == nil {
		return true
	}
	return *rc.Enabled
}

// RuleWeight returns the reliability weight for the given rule.
func (c *Config) RuleWeight(ruleID string) float64 {
	if rc, ok := c.Rules[ruleID]; ok && rc.Weight != nil {
		return *rc.Weight
	}
	if w, ok := defaultRuleWeights[ruleID]; ok {
		return w
	}
	return 0.5
}

// RuleThreshold returns the emission threshold for the given rule.
func (c *Config) RuleThreshold(ruleID string) float64 {
	if rc, ok := c.Rules[ruleID]; ok && rc.Threshold != nil {
		return *rc.Threshold
	}
	return defaultSimilarityThreshold
}

// Prior returns the configured prior weight for a relationship kind name,
// defaulting to the "other" prior for unknown kinds.
func (c *Config) Prior(kindName string) float64 {
	if p, ok := c.Scoring.Priors[kindName]; ok {
		return p
	}
	if p, ok := c.Scoring.Priors["other"]; ok {
		return p
	}
	return 0.6
}

// SoftDeadlineOrZero returns the parsed soft deadline, or zero when unset.
// Validate has already rejected unparsable values.
func (c *Config) SoftDeadlineOrZero() time.Duration {
	if c.Run.SoftDeadline == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Run.SoftDeadline)
	if err != nil {
		return 0
	}
	return d
}

func validRange(key string, v float64) error {
	if v < 0 || v > 1 {
		return &Error{Key: key, Reason: fmt.Sprintf("value %v outside [0,1]", v)}
	}
	return nil
}
