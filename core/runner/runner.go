// Package runner orchestrates one analysis run: pair derivation, parallel
// rule evaluation, confidence scoring, cross-reference resolution, and
// graph construction, with a run summary in which every dropped item is
// counted. The run is a single synchronous computation over one immutable
// element index; all I/O belongs to collaborators.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"cartograph/core/chunking"
	"cartograph/core/config"
	"cartograph/core/element"
	"cartograph/core/graph"
	"cartograph/core/relation"
	"cartograph/core/resolve"
	"cartograph/core/rules"
	"cartograph/core/scoring"
)

// Summary is the run accounting handed to logging and front-end layers.
type Summary struct {
	RunID string `json:"run_id"`

	// Partial marks a run cut short by the soft deadline; the graph holds
	// every decision made before expiry, never a silent truncation.
	Partial bool `json:"partial"`

	PairsEvaluated int `json:"pairs_evaluated"`
	PairsSkipped   int `json:"pairs_skipped"`

	CandidatesGenerated   int `json:"candidates_generated"`
	RelationshipsMerged   int `json:"relationships_merged"`
	FilteredLowConfidence int `json:"filtered_low_confidence"`

	AmbiguousReferences  []resolve.Rejection  `json:"ambiguous_references,omitempty"`
	UnresolvedReferences []resolve.Rejection  `json:"unresolved_references,omitempty"`
	DisabledRules        []rules.DisabledRule `json:"disabled_rules,omitempty"`

	Elapsed time.Duration `json:"elapsed"`
}

// Result is the finished run: the graph transfers to the caller by single
// ownership and is never touched by the runner afterward.
type Result struct {
	Graph   *graph.Graph
	Summary Summary
}

// Runner executes analysis runs under one immutable configuration.
// Concurrent runs with different configurations cannot interfere; nothing
// here is process-global.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New builds a runner. The configuration must already be validated.
func New(cfg *config.Config, logger *slog.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("runner requires a configuration")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger}, nil
}

// Run analyzes the index. When explicitPairs is nil, in-scope pairs are
// derived from the index in a defined total order. A data-consistency
// error aborts the run; rule failures and ambiguous references never do.
func (r *Runner) Run(ctx context.Context, index *element.Index, explicitPairs []element.Pair) (*Result, error) {
	start := time.Now()
	runID := uuid.New().String()
	logger := r.logger.With("run_id", runID)

	pairs, err := r.derivePairs(index, explicitPairs)
	if err != nil {
		return nil, err
	}
	logger.Info("run started", "elements", index.Len(), "pairs", len(pairs))

	engine := rules.NewEngine(r.cfg, logger)
	candidates, evaluated, skipped := r.evaluate(ctx, engine, index, pairs)

	scorer := scoring.NewScorer(r.cfg, index)
	scoreResult := scorer.Score(candidates)

	resolver := resolve.NewResolver(r.cfg, index, logger)
	resolution := resolver.Resolve(scoreResult.Relationships)

	builder := graph.NewBuilder(index)
	for _, rel := range resolution.Resolved {
		if err := builder.Add(rel); err != nil {
			logger.Error("run aborted", "error", err)
			return nil, err
		}
	}
	merged := scoreResult.MergedCount + builder.Merged()
	g := builder.Finish()

	summary := Summary{
		RunID:                 runID,
		Partial:               skipped > 0,
		PairsEvaluated:        evaluated,
		PairsSkipped:          skipped,
		CandidatesGenerated:   len(candidates),
		RelationshipsMerged:   merged,
		FilteredLowConfidence: scoreResult.FilteredCount,
		AmbiguousReferences:   resolution.Ambiguous,
		UnresolvedReferences:  resolution.Unresolved,
		DisabledRules:         engine.Disabled(),
		Elapsed:               time.Since(start),
	}

	logger.Info("run finished",
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"candidates", summary.CandidatesGenerated,
		"filtered", summary.FilteredLowConfidence,
		"ambiguous", len(summary.AmbiguousReferences),
		"partial", summary.Partial,
		"elapsed", summary.Elapsed)

	return &Result{Graph: g, Summary: summary}, nil
}

// Chunks partitions a finished graph per the run configuration.
func (r *Runner) Chunks(g *graph.Graph) ([]chunking.Chunk, error) {
	chunker, err := chunking.NewChunker(r.cfg.Chunking, nil)
	if err != nil {
		return nil, err
	}
	return chunker.Partition(g), nil
}

func (r *Runner) derivePairs(index *element.Index, explicit []element.Pair) ([]element.Pair, error) {
	if explicit != nil {
		for _, p := range explicit {
			if err := index.ValidatePair(p); err != nil {
				return nil, err
			}
		}
		return explicit, nil
	}

	filter, err := element.NewScopeFilter(r.cfg.Scope.Include, r.cfg.Scope.Exclude)
	if err != nil {
		return nil, err
	}
	return index.Pairs(filter.Apply(index)), nil
}

// evaluate shards pair evaluation across workers. Each worker owns a strided
// subset of the pair list and writes into its own result slots, so the
// merged candidate stream is in pair order regardless of scheduling. On soft
// deadline expiry workers stop picking up new pairs; the remainder is
// counted as skipped.
func (r *Runner) evaluate(ctx context.Context, engine *rules.Engine, index *element.Index, pairs []element.Pair) (candidates []relation.Candidate, evaluated, skipped int) {
	var deadline time.Time
	if soft := r.cfg.SoftDeadlineOrZero(); soft > 0 {
		deadline = time.Now().Add(soft)
	}
	expired := func() bool {
		if ctx.Err() != nil {
			return true
		}
		return !deadline.IsZero() && time.Now().After(deadline)
	}

	results := make([][]relation.Candidate, len(pairs))
	var evaluatedCount, skippedCount atomic.Int64

	workers := r.cfg.Run.Workers
	if workers > len(pairs) && len(pairs) > 0 {
		workers = len(pairs)
	}

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		worker := w
		eg.Go(func() error {
			for i := worker; i < len(pairs); i += workers {
				if expired() {
					skippedCount.Add(1)
					continue
				}
				source, _ := index.ByID(pairs[i].SourceID)
				target, _ := index.ByID(pairs[i].TargetID)
				for _, outcome := range engine.EvaluatePair(source, target) {
					results[i] = append(results[i], outcome.Candidates...)
				}
				evaluatedCount.Add(1)
			}
			return nil
		})
	}
	// Workers only return nil; Wait just joins them.
	_ = eg.Wait()

	for _, batch := range results {
		candidates = append(candidates, batch...)
	}
	return candidates, int(evaluatedCount.Load()), int(skippedCount.Load())
}
