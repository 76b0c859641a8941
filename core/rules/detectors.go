package rules

import (
	"strings"

	"cartograph/core/config"
	"cartograph/core/element"
	"cartograph/core/relation"
)

// Raw evidence levels for the built-in rules. These are the rules' own
// signal strengths; calibration against rule reliability happens in the
// scorer, not here.
const (
	evidenceImportQualified = 1.0
	evidenceImportBare      = 0.75
	evidenceInheritance     = 0.95
	evidenceInheritanceBare = 0.80
	evidenceCallQualified   = 0.85
	evidenceCallBare        = 0.70
	evidenceDocQualified    = 0.80
	evidenceDocBare         = 0.65
	evidenceNameMatch       = 0.60
)

// Metadata keys the built-in rules read. Values are produced by upstream
// extractors; list keys are comma-separated.
const (
	metaImports    = "imports"
	metaBases      = "bases"
	metaCalls      = "calls"
	metaReferences = "references"
	metaText       = "text"
)

func isQualified(name string) bool {
	return strings.ContainsAny(name, "./#")
}

func loc(e element.Element) *relation.Location {
	return &relation.Location{Path: e.Path, Line: e.StartLine}
}

// =============================================================================
// import_reference
// =============================================================================

// importRule matches entries of the source's "imports" metadata against the
// paired target. Qualified entries bind directly; bare entries become
// name candidates for the resolver.
type importRule struct{}

func newImportRule() *importRule { return &importRule{} }

func (r *importRule) ID() string { return config.RuleImportReference }

func (r *importRule) Applicable(source, target element.Element) bool {
	return source.Kind.IsCode() && target.Kind.IsCode() &&
		len(source.MetaList(metaImports)) > 0
}

func (r *importRule) Detect(source, target element.Element) ([]relation.Candidate, error) {
	var out []relation.Candidate
	for _, entry := range source.MetaList(metaImports) {
		switch {
		case entry == target.QualifiedName:
			out = append(out, relation.Candidate{
				SourceID: source.ID,
				TargetID: target.ID,
				Kind:     relation.KindImports,
				RuleID:   r.ID(),
				Evidence: evidenceImportQualified,
				Location: loc(source),
			})
		case !isQualified(entry) && entry == target.NameTail():
			out = append(out, relation.Candidate{
				SourceID:     source.ID,
				TargetName:   entry,
				Kind:         relation.KindImports,
				RuleID:       r.ID(),
				Evidence:     evidenceImportBare,
				ExpectedKind: element.KindModule,
				Location:     loc(source),
			})
		}
	}
	return out, nil
}

// =============================================================================
// inheritance
// =============================================================================

// inheritanceRule matches the source's declared "bases" against the paired
// target. Only type-like elements participate.
type inheritanceRule struct{}

func newInheritanceRule() *inheritanceRule { return &inheritanceRule{} }

func (r *inheritanceRule) ID() string { return config.RuleInheritance }

func isTypeLike(k element.Kind) bool {
	return k == element.KindClass || k == element.KindInterface
}

func (r *inheritanceRule) Applicable(source, target element.Element) bool {
	return isTypeLike(source.Kind) && isTypeLike(target.Kind) &&
		len(source.MetaList(metaBases)) > 0
}

func (r *inheritanceRule) Detect(source, target element.Element) ([]relation.Candidate, error) {
	var out []relation.Candidate
	for _, base := range source.MetaList(metaBases) {
		switch {
		case base == target.QualifiedName:
			out = append(out, relation.Candidate{
				SourceID: source.ID,
				TargetID: target.ID,
				Kind:     relation.KindInherits,
				RuleID:   r.ID(),
				Evidence: evidenceInheritance,
				Location: loc(source),
			})
		case !isQualified(base) && base == target.NameTail():
			out = append(out, relation.Candidate{
				SourceID:     source.ID,
				TargetName:   base,
				Kind:         relation.KindInherits,
				RuleID:       r.ID(),
				Evidence:     evidenceInheritanceBare,
				ExpectedKind: target.Kind,
				Location:     loc(source),
			})
		}
	}
	return out, nil
}

// =============================================================================
// call_reference
// =============================================================================

// callRule matches the source's "calls" metadata against callable targets.
type callRule struct{}

func newCallRule() *callRule { return &callRule{} }

func (r *callRule) ID() string { return config.RuleCallReference }

func isCallable(k element.Kind) bool {
	return k == element.KindFunction || k == element.KindMethod
}

func (r *callRule) Applicable(source, target element.Element) bool {
	return source.Kind.IsCode() && isCallable(target.Kind) &&
		len(source.MetaList(metaCalls)) > 0
}

func (r *callRule) Detect(source, target element.Element) ([]relation.Candidate, error) {
	var out []relation.Candidate
	for _, call := range source.MetaList(metaCalls) {
		switch {
		case call == target.QualifiedName:
			out = append(out, relation.Candidate{
				SourceID: source.ID,
				TargetID: target.ID,
				Kind:     relation.KindCalls,
				RuleID:   r.ID(),
				Evidence: evidenceCallQualified,
				Location: loc(source),
			})
		case !isQualified(call) && call == target.NameTail():
			out = append(out, relation.Candidate{
				SourceID:     source.ID,
				TargetName:   call,
				Kind:         relation.KindCalls,
				RuleID:       r.ID(),
				Evidence:     evidenceCallBare,
				ExpectedKind: target.Kind,
				Location:     loc(source),
			})
		}
	}
	return out, nil
}

// =============================================================================
// doc_reference
// =============================================================================

// docReferenceRule matches a documentation element's extracted "references"
// against code targets. Bare mentions are compared case-insensitively at
// detection time; the resolver applies the real match tiers.
type docReferenceRule struct{}

func newDocReferenceRule() *docReferenceRule { return &docReferenceRule{} }

func (r *docReferenceRule) ID() string { return config.RuleDocReference }

func (r *docReferenceRule) Applicable(source, target element.Element) bool {
	return source.Kind.IsDoc() && target.Kind.IsCode() &&
		len(source.MetaList(metaReferences)) > 0
}

func (r *docReferenceRule) Detect(source, target element.Element) ([]relation.Candidate, error) {
	var out []relation.Candidate
	for _, ref := range source.MetaList(metaReferences) {
		switch {
		case ref == target.QualifiedName:
			out = append(out, relation.Candidate{
				SourceID: source.ID,
				TargetID: target.ID,
				Kind:     relation.KindReferencesDoc,
				RuleID:   r.ID(),
				Evidence: evidenceDocQualified,
				Location: loc(source),
			})
		case !isQualified(ref) && strings.EqualFold(ref, target.NameTail()):
			out = append(out, relation.Candidate{
				SourceID:   source.ID,
				TargetName: ref,
				Kind:       relation.KindReferencesDoc,
				RuleID:     r.ID(),
				Evidence:   evidenceDocBare,
				Location:   loc(source),
			})
		}
	}
	return out, nil
}

// =============================================================================
// name_match
// =============================================================================

// nameMatchRule links code and documentation artifacts whose bare names
// match case-insensitively.
type nameMatchRule struct{}

func newNameMatchRule() *nameMatchRule { return &nameMatchRule{} }

func (r *nameMatchRule) ID() string { return config.RuleNameMatch }

func (r *nameMatchRule) Applicable(source, target element.Element) bool {
	return source.Kind.IsCode() != target.Kind.IsCode()
}

func (r *nameMatchRule) Detect(source, target element.Element) ([]relation.Candidate, error) {
	if !strings.EqualFold(source.NameTail(), target.NameTail()) {
		return nil, nil
	}
	return []relation.Candidate{{
		SourceID: source.ID,
		TargetID: target.ID,
		Kind:     relation.KindNameMatch,
		RuleID:   r.ID(),
		Evidence: evidenceNameMatch,
	}}, nil
}
