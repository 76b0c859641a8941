// Package element defines the read-only artifact model consumed by the
// analysis core. Elements are extracted upstream by language-specific
// extractors; this package never parses source text.
package element

import (
	"encoding/json"
	"fmt"
	"strings"
)

// =============================================================================
// Kind
// =============================================================================

// Kind classifies an extracted code or documentation artifact.
type Kind int

const (
	// KindUnknown is the zero value and never valid in an index.
	KindUnknown Kind = iota

	// KindModule represents a top-level module.
	KindModule

	// KindPackage represents a package or namespace.
	KindPackage

	// KindClass represents a class or struct type.
	KindClass

	// KindInterface represents an interface or trait.
	KindInterface

	// KindFunction represents a free function.
	KindFunction

	// KindMethod represents a method bound to a type.
	KindMethod

	// KindVariable represents a variable declaration.
	KindVariable

	// KindConstant represents a constant declaration.
	KindConstant

	// KindDocument represents a documentation file.
	KindDocument

	// KindSection represents a section within a document.
	KindSection

	// KindCodeBlock represents a fenced code block inside a document.
	KindCodeBlock
)

var kindNames = map[Kind]string{
	KindModule:    "module",
	KindPackage:   "package",
	KindClass:     "class",
	KindInterface: "interface",
	KindFunction:  "function",
	KindMethod:    "method",
	KindVariable:  "variable",
	KindConstant:  "constant",
	KindDocument:  "document",
	KindSection:   "section",
	KindCodeBlock: "code_block",
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", k)
}

// ParseKind parses a string into a Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("unknown element kind: %q", s)
}

// IsValid returns true if the kind is a recognized value.
func (k Kind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsCode returns true for code artifact kinds.
func (k Kind) IsCode() bool {
	switch k {
	case KindModule, KindPackage, KindClass, KindInterface,
		KindFunction, KindMethod, KindVariable, KindConstant:
		return true
	}
	return false
}

// IsDoc returns true for documentation artifact kinds.
func (k Kind) IsDoc() bool {
	switch k {
	case KindDocument, KindSection, KindCodeBlock:
		return true
	}
	return false
}

// ValidKinds returns all valid Kind values in declaration order.
func ValidKinds() []Kind {
	return []Kind{
		KindModule, KindPackage, KindClass, KindInterface,
		KindFunction, KindMethod, KindVariable, KindConstant,
		KindDocument, KindSection, KindCodeBlock,
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

	var asInt int
	if err := json.Unmarshal(data, &asInt); err == nil {
		*k = Kind(asInt)
		return nil
	}

	return fmt.Errorf("invalid element kind")
}

// =============================================================================
// Element
// =============================================================================

// Element is one extracted artifact. Elements are immutable for the duration
// of a run; the index hands out copies, never shared mutable state.
type Element struct {
	// ID uniquely identifies the element across the whole index.
	ID string `json:"id"`

	// Kind classifies the artifact.
	Kind Kind `json:"kind"`

	// QualifiedName is the dot-separated fully qualified name,
	// e.g. "calc.Calculator.add" or "docs/guide.md#usage".
	QualifiedName string `json:"qualified_name"`

	// Path is the source file path relative to the project root.
	Path string `json:"path"`

	// StartLine and EndLine delimit the artifact in its file (1-based,
	// inclusive).
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// Metadata carries extractor-provided facts about the element.
	// List-valued keys ("imports", "bases", "calls", "references",
	// "aliases") use comma-separated values.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// NameTail returns the final segment of the qualified name, the bare name
// other elements refer to it by.
func (e Element) NameTail() string {
	name := e.QualifiedName
	if idx := strings.LastIndexAny(name, "./#"); idx >= 0 {
		name = name[idx+1:]
	}
	return name
}

// TopLevelPackage returns the first segment of the qualified name, used for
// package-proximity checks.
func (e Element) TopLevelPackage() string {
	name := e.QualifiedName
	if idx := strings.IndexAny(name, "./#"); idx >= 0 {
		return name[:idx]
	}
	return name
}

// MetaList splits a comma-separated metadata value into trimmed entries.
// Missing keys and empty values yield nil.
func (e Element) MetaList(key string) []string {
	raw, ok := e.Metadata[key]
	if !ok || raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Meta returns a single metadata value, or "" when absent.
func (e Element) Meta(key string) string {
	return e.Metadata[key]
}

// Validate checks the element is well-formed enough to index.
func (e Element) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("element has empty id (qualified name %q)", e.QualifiedName)
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("element %s has invalid kind %d", e.ID, int(e.Kind))
	}
	if e.QualifiedName == "" {
		return fmt.Errorf("element %s has empty qualified name", e.ID)
	}
	return nil
}
