package chunking

import (
	"fmt"

	"cartograph/core/config"
	"cartograph/core/graph"
)

// Chunk is one bounded, self-describing slice of the flattened map.
// Index and Total let a consumer detect completeness of the sequence.
type Chunk struct {
	ID        string   `json:"id"`
	Index     int      `json:"index"`
	Total     int      `json:"total"`
	Size      int      `json:"size"`
	Oversized bool     `json:"oversized,omitempty"`
	GroupKeys []string `json:"group_keys"`
	Units     []Unit   `json:"units"`
}

// Chunker partitions a finished graph into an ordered chunk sequence.
// Whole groups are packed greedily before any group is split, so
// structurally related units stay together whenever the budget allows.
type Chunker struct {
	budget    int
	groupBy   string
	estimator Estimator
}

// NewChunker builds a chunker from the chunking configuration. An explicit
// estimator overrides the configured one (used by tests and callers with
// exact token models).
func NewChunker(cfg config.ChunkingConfig, estimator Estimator) (*Chunker, error) {
	if cfg.Budget <= 0 {
		return nil, fmt.Errorf("chunk budget must be positive, got %d", cfg.Budget)
	}
	if estimator == nil {
		var err error
		estimator, err = NewEstimator(cfg.Estimator)
		if err != nil {
			return nil, err
		}
	}
	return &Chunker{
		budget:    cfg.Budget,
		groupBy:   cfg.GroupBy,
		estimator: estimator,
	}, nil
}

// Partition flattens the graph and packs it into chunks. Every atomic unit
// lands in exactly one chunk; a unit larger than the whole budget occupies
// its own chunk, flagged oversized.
func (c *Chunker) Partition(g *graph.Graph) []Chunk {
	groups := flatten(g, c.groupBy)

	var chunks []Chunk
	var current *Chunk

	flush := func() {
		if current != nil && len(current.Units) > 0 {
			chunks = append(chunks, *current)
		}
		current = nil
	}
	open := func() {
		if current == nil {
			current = &Chunk{}
		}
	}
	addUnit := func(u Unit, size int) {
		open()
		current.Units = append(current.Units, u)
		current.Size += size
		if len(current.GroupKeys) == 0 || current.GroupKeys[len(current.GroupKeys)-1] != u.GroupKey {
			current.GroupKeys = append(current.GroupKeys, u.GroupKey)
		}
	}

	for _, grp := range groups {
		sizes := make([]int, len(grp.units))
		groupSize := 0
		for i, u := range grp.units {
			sizes[i] = c.estimator.Estimate(u)
			groupSize += sizes[i]
		}

		switch {
		case current != nil && current.Size+groupSize <= c.budget:
			// Whole group fits alongside what we have.
			for i, u := range grp.units {
				addUnit(u, sizes[i])
			}
		case groupSize <= c.budget:
			// Whole group fits in a fresh chunk.
			flush()
			for i, u := range grp.units {
				addUnit(u, sizes[i])
			}
		default:
			// Group alone exceeds the budget: spill to unit granularity.
			for i, u := range grp.units {
				size := sizes[i]
				if size > c.budget {
					flush()
					addUnit(u, size)
					current.Oversized = true
					flush()
					continue
				}
				if current != nil && current.Size+size > c.budget {
					flush()
				}
				addUnit(u, size)
			}
		}
	}
	flush()

	for i := range chunks {
		chunks[i].ID = fmt.Sprintf("chunk-%04d", i)
		chunks[i].Index = i
		chunks[i].Total = len(chunks)
	}
	return chunks
}
