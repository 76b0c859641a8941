// Package rules implements the detection heuristics that propose
// relationship candidates between element pairs, and the engine that
// evaluates them with per-rule failure isolation.
package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"cartograph/core/config"
	"cartograph/core/element"
	"cartograph/core/relation"
)

// Rule is one independent detection heuristic. Rules are stateless with
// respect to pairs (safe for concurrent use) and never see source text,
// only extracted elements.
type Rule interface {
	// ID returns the stable rule identifier used in configuration and
	// provenance.
	ID() string

	// Applicable is the cheap kind-compatibility pre-filter, run before
	// Detect to avoid needless O(N^2) work.
	Applicable(source, target element.Element) bool

	// Detect evaluates one ordered pair and returns zero or more candidates.
	Detect(source, target element.Element) ([]relation.Candidate, error)
}

// =============================================================================
// Outcome
// =============================================================================

// Status classifies one rule evaluation over one pair.
type Status int

const (
	// StatusHit means the rule produced at least one candidate.
	StatusHit Status = iota

	// StatusMiss means the rule ran cleanly and found nothing.
	StatusMiss

	// StatusError means the rule failed; the failure was isolated and counted.
	StatusError
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHit:
		return "hit"
	case StatusMiss:
		return "miss"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// Outcome is the explicit result of one rule over one pair. Errors are
// values here, never control flow that escapes the engine.
type Outcome struct {
	RuleID     string
	Status     Status
	Candidates []relation.Candidate
	Err        error
}

// DisabledRule records a rule auto-disabled during a run.
type DisabledRule struct {
	RuleID   string `json:"rule_id"`
	Reason   string `json:"reason"`
	Failures int    `json:"failures"`
}

// =============================================================================
// Engine
// =============================================================================

// Engine evaluates the enabled rule set over element pairs. It isolates rule
// failures, counts them per rule, and auto-disables a rule once its failure
// count reaches the configured maximum. Safe for concurrent use by multiple
// evaluation workers.
type Engine struct {
	rules       []Rule
	maxFailures int
	logger      *slog.Logger

	mu       sync.Mutex
	failures map[string]int
	disabled map[string]DisabledRule
}

// NewEngine builds an engine with the built-in rules enabled per config.
// Rule order follows config.KnownRuleIDs so evaluation order is fixed.
func NewEngine(cfg *config.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	builtins := map[string]Rule{
		config.RuleImportReference:   newImportRule(),
		config.RuleInheritance:       newInheritanceRule(),
		config.RuleCallReference:     newCallRule(),
		config.RuleDocReference:      newDocReferenceRule(),
		config.RuleNameMatch:         newNameMatchRule(),
		config.RuleContentSimilarity: newSimilarityRule(cfg.RuleThreshold(config.RuleContentSimilarity)),
	}

	var enabled []Rule
	for _, id := range config.KnownRuleIDs() {
		if cfg.RuleEnabled(id) {
			enabled = append(enabled, builtins[id])
		}
	}
	return NewEngineWithRules(enabled, cfg.Run.MaxRuleFailures, logger)
}

// NewEngineWithRules builds an engine over an explicit rule set, for callers
// extending the built-in vocabulary. Rule order is evaluation order.
func NewEngineWithRules(ruleSet []Rule, maxFailures int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		rules:       ruleSet,
		maxFailures: maxFailures,
		logger:      logger,
		failures:    make(map[string]int),
		disabled:    make(map[string]DisabledRule),
	}
}

// Rules returns the ids of the rules the engine started with.
func (e *Engine) Rules() []string {
	ids := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		ids = append(ids, r.ID())
	}
	return ids
}

// EvaluatePair runs every enabled, applicable rule over one ordered pair,
// returning one outcome per rule that ran. A rule failure never aborts the
// pair or the run.
func (e *Engine) EvaluatePair(source, target element.Element) []Outcome {
	outcomes := make([]Outcome, 0, len(e.rules))
	for _, rule := range e.rules {
		if e.isDisabled(rule.ID()) {
			continue
		}
		if !rule.Applicable(source, target) {
			continue
		}

		candidates, err := e.detect(rule, source, target)
		switch {
		case err != nil:
			e.logger.Warn("rule failed on pair",
				"rule", rule.ID(),
				"source", source.ID,
				"target", target.ID,
				"error", err)
			e.recordFailure(rule.ID(), err)
			outcomes = append(outcomes, Outcome{RuleID: rule.ID(), Status: StatusError, Err: err})
		case len(candidates) > 0:
			outcomes = append(outcomes, Outcome{RuleID: rule.ID(), Status: StatusHit, Candidates: candidates})
		default:
			outcomes = append(outcomes, Outcome{RuleID: rule.ID(), Status: StatusMiss})
		}
	}
	return outcomes
}

// detect invokes one rule with panic isolation; a panicking rule is an
// error outcome like any other.
func (e *Engine) detect(rule Rule, source, target element.Element) (candidates []relation.Candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			candidates = nil
			err = fmt.Errorf("rule %s panicked: %v", rule.ID(), r)
		}
	}()
	return rule.Detect(source, target)
}

func (e *Engine) isDisabled(ruleID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.disabled[ruleID]
	return ok
}

func (e *Engine) recordFailure(ruleID string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.failures[ruleID]++
	if e.failures[ruleID] >= e.maxFailures {
		if _, already := e.disabled[ruleID]; !already {
			e.disabled[ruleID] = DisabledRule{
				RuleID:   ruleID,
				Reason:   fmt.Sprintf("disabled after %d failures, last: %v", e.failures[ruleID], err),
				Failures: e.failures[ruleID],
			}
			e.logger.Warn("rule auto-disabled for remainder of run",
				"rule", ruleID,
				"failures", e.failures[ruleID])
		}
	}
}

// Disabled returns the rules auto-disabled so far, sorted by rule id.
func (e *Engine) Disabled() []DisabledRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]DisabledRule, 0, len(e.disabled))
	for _, d := range e.disabled {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}
