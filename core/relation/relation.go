// Package relation defines the relationship vocabulary shared by the
// detection, scoring, resolution, and graph stages.
package relation

import (
	"encoding/json"
	"fmt"

	"cartograph/core/element"
)

// =============================================================================
// Kind
// =============================================================================

// Kind classifies a detected relationship between two elements.
type Kind int

const (
	// KindImports indicates the source imports the target.
	KindImports Kind = iota

	// KindInherits indicates the source inherits from or implements the target.
	KindInherits

	// KindCalls indicates the source calls the target.
	KindCalls

	// KindReferencesDoc indicates a documentation artifact references the target.
	KindReferencesDoc

	// KindNameMatch indicates a case-insensitive name correspondence across
	// code and documentation.
	KindNameMatch

	// KindContentSimilar indicates threshold-gated textual similarity.
	KindContentSimilar

	// KindOther covers relationships outside the built-in vocabulary.
	KindOther
)

var kindNames = map[Kind]string{
	KindImports:        "imports",
	KindInherits:       "inherits",
	KindCalls:          "calls",
	KindReferencesDoc:  "references_doc",
	KindNameMatch:      "name_match",
	KindContentSimilar: "content_similar",
	KindOther:          "other",
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("relation(%d)", k)
}

// ParseKind parses a string into a relationship Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return Kind(0), fmt.Errorf("unknown relationship kind: %q", s)
}

// IsValid returns true if the kind is a recognized value.
func (k Kind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

// ValidKinds returns all valid Kind values in declaration order.
func ValidKinds() []Kind {
	return []Kind{
		KindImports, KindInherits, KindCalls, KindReferencesDoc,
		KindNameMatch, KindContentSimilar, KindOther,
	}
}

// MarshalJSON implements json.Marshaler for Kind.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON implements json.Unmarshaler for Kind.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		parsed, err := ParseKind(asString)
		if err != nil {
			return err
		}
		*k = parsed
		return nil
	}
	return fmt.Errorf("invalid relationship kind")
}

// =============================================================================
// Candidate and scored relationship
// =============================================================================

// Location pins a relationship trigger to a point in a source file.
type Location struct {
	Path string `json:"path"`
	Line int    `json:"line"`
}

// Candidate is one unscored relationship proposal emitted by exactly one
// detection rule. A candidate either names a concrete target element
// (TargetID set) or a bare textual name the resolver must disambiguate
// (TargetName set, TargetID empty).
type Candidate struct {
	SourceID   string
	TargetID   string
	TargetName string
	Kind       Kind

	// RuleID identifies the originating rule.
	RuleID string

	// Evidence is the rule's raw signal strength in [0,1].
	Evidence float64

	// ExpectedKind optionally hints what kind of element a bare-name target
	// should resolve to; KindUnknown means no hint.
	ExpectedKind element.Kind

	// Location optionally records where the relationship was triggered.
	Location *Location
}

// Resolved reports whether the candidate already names a concrete target.
func (c Candidate) Resolved() bool {
	return c.TargetID != ""
}

// TargetKey returns the grouping key for the candidate's target: the element
// id when resolved, otherwise the bare name prefixed so the two namespaces
// cannot collide.
func (c Candidate) TargetKey() string {
	if c.TargetID != "" {
		return c.TargetID
	}
	return "name:" + c.TargetName
}

// Scored is one candidate group reduced to a single calibrated confidence.
// TargetName is retained for groups still awaiting resolution.
type Scored struct {
	SourceID   string
	TargetID   string
	TargetName string
	Kind       Kind

	// Confidence is the calibrated score in [0,1].
	Confidence float64

	// RuleIDs lists the distinct contributing rules, sorted.
	RuleIDs []string

	// ExpectedKind carries the strongest candidate's resolution hint.
	ExpectedKind element.Kind

	// Location is the first contributing candidate's trigger location.
	Location *Location
}

// Resolved reports whether the relationship names a concrete target.
func (s Scored) Resolved() bool {
	return s.TargetID != ""
}
