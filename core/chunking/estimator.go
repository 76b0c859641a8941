package chunking

import (
	"fmt"
	"strings"

	"cartograph/core/config"
)

// Estimator approximates the size of one unit in budget units. Estimation
// is best-effort by contract; the engine guarantees budget adherence only
// as far as the estimate is honest.
type Estimator interface {
	// Name returns the configuration name of the estimator.
	Name() string

	// Estimate returns the unit's approximate size, always >= 1.
	Estimate(u Unit) int
}

// charsPerToken is the character-count heuristic's divisor, the usual
// rough ratio for English-ish text and code identifiers.
const charsPerToken = 4

// CharEstimator is the default character-count-based heuristic.
type CharEstimator struct{}

// Name returns "chars".
func (CharEstimator) Name() string { return config.EstimatorChars }

// Estimate returns ceil(len(body) / charsPerToken), minimum 1.
func (CharEstimator) Estimate(u Unit) int {
	n := (len(u.Body) + charsPerToken - 1) / charsPerToken
	if n < 1 {
		return 1
	}
	return n
}

// WordEstimator counts whitespace- and separator-delimited fields.
type WordEstimator struct{}

// Name returns "words".
func (WordEstimator) Name() string { return config.EstimatorWords }

// Estimate returns the field count of the body, minimum 1.
func (WordEstimator) Estimate(u Unit) int {
	n := len(strings.FieldsFunc(u.Body, func(r rune) bool {
		return r == ' ' || r == '|' || r == '=' || r == ','
	}))
	if n < 1 {
		return 1
	}
	return n
}

// NewEstimator returns the estimator registered under the given name.
func NewEstimator(name string) (Estimator, error) {
	switch name {
	case config.EstimatorChars:
		return CharEstimator{}, nil
	case config.EstimatorWords:
		return WordEstimator{}, nil
	default:
		return nil, fmt.Errorf("unknown estimator %q", name)
	}
}
