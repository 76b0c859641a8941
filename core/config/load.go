package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"
)

// Error is a fatal configuration problem. The run never starts on one.
type Error struct {
	// Key names the offending configuration key.
	Key string

	// Reason describes what is wrong with it.
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("configuration error: key %q: %s", e.Key, e.Reason)
}

// yaml.v3 reports unknown fields as "field <name> not found in type <type>";
// pull the field name out so the error can name the offending key.
var unknownFieldRe = regexp.MustCompile(`field (\S+) not found in type`)

// Load reads and parses a YAML configuration file, applying strict
// unknown-key rejection and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration bytes over the defaults. Unknown keys are
// a configuration error naming the key.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		// An empty document overrides nothing.
	default:
		if m := unknownFieldRe.FindStringSubmatch(err.Error()); m != nil {
			return nil, &Error{Key: m[1], Reason: "unrecognized configuration key"}
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section for unknown names and out-of-range values.
func (c *Config) Validate() error {
	known := KnownRuleIDs()
	for ruleID, rc := range c.Rules {
		if !slices.Contains(known, ruleID) {
			return &Error{Key: "rules." + ruleID, Reason: "unknown rule id"}
		}
		if rc.Weight != nil {
			if err := validRange("rules."+ruleID+".weight", *rc.Weight); err != nil {
				return err
			}
		}
		if rc.Threshold != nil {
			if err := validRange("rules."+ruleID+".threshold", *rc.Threshold); err != nil {
				return err
			}
		}
	}

	s := c.Scoring
	for key, v := range map[string]float64{
		"scoring.multi_detection_bonus": s.MultiDetectionBonus,
		"scoring.proximity_bonus":       s.ProximityBonus,
		"scoring.cross_package_penalty": s.CrossPackagePenalty,
		"scoring.min_confidence":        s.MinConfidence,
	} {
		if err := validRange(key, v); err != nil {
			return err
		}
	}
	for kindName, prior := range s.Priors {
		if err := validRange("scoring.priors."+kindName, prior); err != nil {
			return err
		}
	}
	if s.CombineOrder != CombineAdjustThenPrior && s.CombineOrder != CombinePriorFirst {
		return &Error{Key: "scoring.combine_order", Reason: fmt.Sprintf("unknown order %q", s.CombineOrder)}
	}

	for key, v := range map[string]float64{
		"resolver.tier_weights.exact":            c.Resolver.TierWeights.Exact,
		"resolver.tier_weights.case_insensitive": c.Resolver.TierWeights.CaseInsensitive,
		"resolver.tier_weights.partial":          c.Resolver.TierWeights.Partial,
	} {
		if err := validRange(key, v); err != nil {
			return err
		}
	}
	for _, stage := range c.Resolver.TieBreaks {
		switch stage {
		case TieBreakFile, TieBreakPackage, TieBreakKind:
		default:
			return &Error{Key: "resolver.tie_breaks", Reason: fmt.Sprintf("unknown stage %q", stage)}
		}
	}

	if c.Chunking.Budget <= 0 {
		return &Error{Key: "chunking.budget", Reason: fmt.Sprintf("must be positive, got %d", c.Chunking.Budget)}
	}
	if c.Chunking.Estimator != EstimatorChars && c.Chunking.Estimator != EstimatorWords {
		return &Error{Key: "chunking.estimator", Reason: fmt.Sprintf("unknown estimator %q", c.Chunking.Estimator)}
	}
	if c.Chunking.GroupBy != GroupByFile && c.Chunking.GroupBy != GroupByPackage {
		return &Error{Key: "chunking.group_by", Reason: fmt.Sprintf("unknown grouping key %q", c.Chunking.GroupBy)}
	}

	if c.Run.Workers < 1 {
		return &Error{Key: "run.workers", Reason: fmt.Sprintf("must be >= 1, got %d", c.Run.Workers)}
	}
	if c.Run.SoftDeadline != "" {
		d, err := time.ParseDuration(c.Run.SoftDeadline)
		if err != nil {
			return &Error{Key: "run.soft_deadline", Reason: fmt.Sprintf("invalid duration %q", c.Run.SoftDeadline)}
		}
		if d < 0 {
			return &Error{Key: "run.soft_deadline", Reason: "must not be negative"}
		}
	}
	if c.Run.MaxRuleFailures < 1 {
		return &Error{Key: "run.max_rule_failures", Reason: fmt.Sprintf("must be >= 1, got %d", c.Run.MaxRuleFailures)}
	}

	for _, section := range []struct {
		key      string
		patterns []string
	}{
		{"scope.include", c.Scope.Include},
		{"scope.exclude", c.Scope.Exclude},
	} {
		for _, pattern := range section.patterns {
			if _, err := glob.Compile(pattern, '/'); err != nil {
				return &Error{Key: section.key, Reason: fmt.Sprintf("invalid pattern %q", pattern)}
			}
		}
	}

	return nil
}
