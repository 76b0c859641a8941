package element

import (
	"errors"
	"fmt"

	"github.com/gobwas/glob"
)

// ErrInvalidPattern indicates a scope glob pattern could not be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// ScopeFilter selects which elements originate relationship pairs, by glob
// patterns over element source paths. Elements filtered out stay in the
// index and remain valid targets; they just produce no pairs of their own.
type ScopeFilter struct {
	includeMatchers []glob.Glob
	excludeMatchers []glob.Glob
}

// NewScopeFilter compiles include and exclude patterns. An empty include
// list means every path is in scope, subject to exclusions.
func NewScopeFilter(include, exclude []string) (*ScopeFilter, error) {
	includeMatchers, err := compileGlobs(include)
	if err != nil {
		return nil, err
	}
	excludeMatchers, err := compileGlobs(exclude)
	if err != nil {
		return nil, err
	}
	return &ScopeFilter{
		includeMatchers: includeMatchers,
		excludeMatchers: excludeMatchers,
	}, nil
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	matchers := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		matcher, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
		}
		matchers = append(matchers, matcher)
	}
	return matchers, nil
}

// InScope reports whether the given path passes the filter.
func (f *ScopeFilter) InScope(path string) bool {
	for _, matcher := range f.excludeMatchers {
		if matcher.Match(path) {
			return false
		}
	}
	if len(f.includeMatchers) == 0 {
		return true
	}
	for _, matcher := range f.includeMatchers {
		if matcher.Match(path) {
			return true
		}
	}
	return false
}

// Apply returns the ids from the index whose paths are in scope, preserving
// the index's sorted-id order.
func (f *ScopeFilter) Apply(idx *Index) []string {
	out := make([]string, 0, idx.Len())
	for _, id := range idx.IDs() {
		e, _ := idx.ByID(id)
		if f.InScope(e.Path) {
			out = append(out, id)
		}
	}
	return out
}
