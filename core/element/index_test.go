package element_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cartograph/core/element"
)

func mkElement(id, qualified, path string, kind element.Kind) element.Element {
	return element.Element{
		ID:            id,
		Kind:          kind,
		QualifiedName: qualified,
		Path:          path,
		StartLine:     1,
		EndLine:       10,
	}
}

func TestNewIndexRejectsDuplicates(t *testing.T) {
	_, err := element.NewIndex([]element.Element{
		mkElement("e1", "calc.Calculator", "calc.py", element.KindClass),
		mkElement("e1", "legacy.Calculator", "legacy.py", element.KindClass),
	})
	require.ErrorIs(t, err, element.ErrDuplicateID)
}

func TestIndexLookups(t *testing.T) {
	idx, err := element.NewIndex([]element.Element{
		mkElement("e2", "legacy.Calculator", "legacy.py", element.KindClass),
		mkElement("e1", "calc.Calculator", "calc.py", element.KindClass),
		mkElement("e3", "calc.adder", "calc.py", element.KindFunction),
	})
	require.NoError(t, err)

	got, ok := idx.ByID("e1")
	require.True(t, ok)
	assert.Equal(t, "calc.Calculator", got.QualifiedName)

	// Sorted-id enumeration.
	all := idx.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"e1", "e2", "e3"}, []string{all[0].ID, all[1].ID, all[2].ID})

	// Tail lookup is case-insensitive and sorted by id.
	matches := idx.ByNameTail("calculator")
	require.Len(t, matches, 2)
	assert.Equal(t, "e1", matches[0].ID)
	assert.Equal(t, "e2", matches[1].ID)
}

func TestIndexAliasLookup(t *testing.T) {
	e := mkElement("e1", "calc.Calculator", "calc.py", element.KindClass)
	e.Metadata = map[string]string{"aliases": "Calc"}
	idx, err := element.NewIndex([]element.Element{e})
	require.NoError(t, err)

	matches := idx.ByNameTail("Calc")
	require.Len(t, matches, 1)
	assert.Equal(t, "e1", matches[0].ID)
}

func TestPairsTotalOrder(t *testing.T) {
	idx, err := element.NewIndex([]element.Element{
		mkElement("b", "pkg.B", "b.py", element.KindClass),
		mkElement("a", "pkg.A", "a.py", element.KindClass),
		mkElement("c", "pkg.C", "c.py", element.KindClass),
	})
	require.NoError(t, err)

	pairs := idx.Pairs([]string{"c", "a", "b"})
	want := []element.Pair{
		{SourceID: "a", TargetID: "b"}, {SourceID: "a", TargetID: "c"},
		{SourceID: "b", TargetID: "a"}, {SourceID: "b", TargetID: "c"},
		{SourceID: "c", TargetID: "a"}, {SourceID: "c", TargetID: "b"},
	}
	assert.Equal(t, want, pairs)

	// Identical input, identical stream.
	assert.Equal(t, pairs, idx.Pairs([]string{"a", "b", "c"}))
}

func TestValidatePair(t *testing.T) {
	idx, err := element.NewIndex([]element.Element{
		mkElement("a", "pkg.A", "a.py", element.KindClass),
	})
	require.NoError(t, err)

	require.NoError(t, idx.ValidatePair(element.Pair{SourceID: "a", TargetID: "a"}))
	assert.ErrorIs(t, idx.ValidatePair(element.Pair{SourceID: "a", TargetID: "ghost"}), element.ErrUnknownID)
}

func TestScopeFilter(t *testing.T) {
	idx, err := element.NewIndex([]element.Element{
		mkElement("a", "pkg.A", "src/a.py", element.KindClass),
		mkElement("b", "pkg.B", "src/b_test.py", element.KindClass),
		mkElement("c", "pkg.C", "vendor/c.py", element.KindClass),
	})
	require.NoError(t, err)

	filter, err := element.NewScopeFilter([]string{"src/*"}, []string{"**_test.py"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, filter.Apply(idx))

	// Empty include means everything, subject to exclusions.
	open, err := element.NewScopeFilter(nil, []string{"vendor/*"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, open.Apply(idx))
}

func TestScopeFilterInvalidPattern(t *testing.T) {
	_, err := element.NewScopeFilter([]string{"[unclosed"}, nil)
	assert.ErrorIs(t, err, element.ErrInvalidPattern)
}
