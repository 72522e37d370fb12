package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAnalyzeRecursion_Flat tests that a non-recursive schema has no reports.
func TestAnalyzeRecursion_Flat(t *testing.T) {
	inner := NewRecord("Inner", NewField("x", New(KindInt)))
	outer := NewRecord("Outer", NewField("inner", inner), NewField("list", NewArray(inner)))

	assert.Empty(t, AnalyzeRecursion(outer))
}

// TestAnalyzeRecursion_SelfNullable tests that a linked list is reported as info.
func TestAnalyzeRecursion_SelfNullable(t *testing.T) {
	list := NewRecord("List", NewField("value", New(KindLong)))
	list.Fields = append(list.Fields, NewField("next", list).AsNullable())

	reports := AnalyzeRecursion(list)
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"List", "List"}, reports[0].Path)
	assert.Equal(t, "info", reports[0].Level)
	assert.Contains(t, reports[0].Message, "Self-recursive record")
}

// TestAnalyzeRecursion_ThroughContainer tests that recursion through an
// array is not a warning: the empty array terminates it.
func TestAnalyzeRecursion_ThroughContainer(t *testing.T) {
	tree := NewRecord("Tree")
	tree.Fields = append(tree.Fields, NewField("children", NewArray(tree)))

	reports := AnalyzeRecursion(tree)
	require.Len(t, reports, 1)
	assert.Equal(t, "info", reports[0].Level)
}

// TestAnalyzeRecursion_RequiredSelf tests that an unconstructible record is a warning.
func TestAnalyzeRecursion_RequiredSelf(t *testing.T) {
	loop := NewRecord("Loop")
	loop.Fields = append(loop.Fields, NewField("self", loop))

	reports := AnalyzeRecursion(loop)
	require.Len(t, reports, 1)
	assert.Equal(t, "warning", reports[0].Level)
}

// TestAnalyzeRecursion_Mutual tests path reconstruction across two records.
func TestAnalyzeRecursion_Mutual(t *testing.T) {
	a := NewRecord("A")
	b := NewRecord("B")
	a.Fields = append(a.Fields, NewField("b", b).AsNullable())
	b.Fields = append(b.Fields, NewField("a", a))

	reports := AnalyzeRecursion(a)
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"A", "B", "A"}, reports[0].Path)
	assert.Equal(t, "info", reports[0].Level, "the nullable edge breaks the loop")
	assert.Contains(t, reports[0].Message, "A → B → A")
}

// TestAnalyzeRecursion_Package tests analysis over compiled sources.
func TestAnalyzeRecursion_Package(t *testing.T) {
	pkg := compile(t, `
		record: Node: fields: [
			{name: "value", type: "long"},
			{name: "next", type: "Node", nullable: true},
		]
		record: Leaf: fields: [{name: "v", type: "int"}]
	`)

	reports := AnalyzePackageRecursion(pkg)
	require.Len(t, reports, 1)
	assert.Equal(t, []string{"Node", "Node"}, reports[0].Path)
}
