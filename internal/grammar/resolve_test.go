package grammar

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/symbol"
	"github.com/roach88/evolve/internal/testutil"
	"github.com/roach88/evolve/internal/value"
)

var primitiveTerminals = map[schema.Kind]symbol.Terminal{
	schema.KindBoolean: symbol.Boolean,
	schema.KindInt:     symbol.Int,
	schema.KindLong:    symbol.Long,
	schema.KindFloat:   symbol.Float,
	schema.KindDouble:  symbol.Double,
	schema.KindString:  symbol.String,
	schema.KindBytes:   symbol.Bytes,
}

// TestResolvePromotionTable checks every pair of primitive kinds: equal
// kinds read directly, the four widenings resolve, everything else defers
// a mismatch error.
func TestResolvePromotionTable(t *testing.T) {
	kinds := []schema.Kind{
		schema.KindBoolean, schema.KindInt, schema.KindLong, schema.KindFloat,
		schema.KindDouble, schema.KindString, schema.KindBytes,
	}
	promotable := map[[2]schema.Kind]bool{
		{schema.KindInt, schema.KindLong}:    true,
		{schema.KindInt, schema.KindFloat}:   true,
		{schema.KindLong, schema.KindFloat}:  true,
		{schema.KindInt, schema.KindDouble}:  true,
		{schema.KindLong, schema.KindDouble}: true,
		{schema.KindFloat, schema.KindDouble}: true,
	}

	for _, w := range kinds {
		for _, r := range kinds {
			t.Run(fmt.Sprintf("%s->%s", w, r), func(t *testing.T) {
				got, err := Resolve(schema.New(w), schema.New(r))
				require.NoError(t, err)

				switch {
				case w == r:
					assert.Equal(t, primitiveTerminals[w], got)
				case promotable[[2]schema.Kind{w, r}]:
					assert.Equal(t, &symbol.Resolve{Base: primitiveTerminals[w], Target: primitiveTerminals[r]}, got)
					assert.True(t, CanPromote(w, r))
				default:
					e, ok := got.(*symbol.Error)
					require.True(t, ok, "expected deferred error, got %T", got)
					assert.Equal(t, fmt.Sprintf("Found %s, expecting %s", w, r), e.Message)
					assert.False(t, CanPromote(w, r))
				}
			})
		}
	}
}

func TestResolveOpaqueKindsReadBytes(t *testing.T) {
	for _, k := range []schema.Kind{schema.KindBytes, schema.KindTimestamp, schema.KindNumber, schema.KindJSON} {
		got, err := Resolve(schema.New(k), schema.New(k))
		require.NoError(t, err)
		assert.Equal(t, symbol.Bytes, got, k.String())
	}
}

func TestResolveUUIDFollowsWriter(t *testing.T) {
	got, err := Resolve(schema.NewUUID(), schema.New(schema.KindString))
	require.NoError(t, err)
	assert.Equal(t, symbol.Bytes, got)

	got, err = Resolve(schema.New(schema.KindString), schema.NewUUID())
	require.NoError(t, err)
	assert.Equal(t, symbol.String, got)
}

// TestResolveRecordReordering resolves W{a:int, b:string, c:long} against
// R{c:long, a:long, d:string="x"}.
func TestResolveRecordReordering(t *testing.T) {
	writer := schema.NewRecord("T",
		schema.NewField("a", schema.New(schema.KindInt)),
		schema.NewField("b", schema.New(schema.KindString)),
		schema.NewField("c", schema.New(schema.KindLong)),
	)
	reader := schema.NewRecord("T",
		schema.NewField("c", schema.New(schema.KindLong)),
		schema.NewField("a", schema.New(schema.KindLong)),
		schema.NewField("d", schema.New(schema.KindString)).WithDefault(value.String("x")),
	)

	g, err := Resolve(writer, reader)
	require.NoError(t, err)
	seq := g.(*symbol.Seq)
	require.Equal(t, 7, seq.Len())

	want := []symbol.Symbol{
		&symbol.FieldOrder{Fields: []string{"a", "c", "d"}},
		&symbol.Resolve{Base: symbol.Int, Target: symbol.Long},
		&symbol.Skip{Inner: symbol.String},
		symbol.Long,
		&symbol.DefaultStart{Bytes: []byte{0, 0, 0, 1, 'x'}},
		symbol.String,
		&symbol.DefaultEnd{},
	}
	assert.Equal(t, want, seq.Execution())
}

func TestResolveMissingRequiredField(t *testing.T) {
	writer := schema.NewRecord("User", schema.NewField("id", schema.New(schema.KindLong)))
	reader := schema.NewRecord("User",
		schema.NewField("id", schema.New(schema.KindLong)),
		schema.NewField("email", schema.New(schema.KindString)),
	)

	g, err := Resolve(writer, reader)
	require.NoError(t, err, "missing fields are deferred, not construction failures")
	e, ok := g.(*symbol.Error)
	require.True(t, ok)
	assert.Equal(t, "Found record User, expecting record User, missing required field email", e.Message)
}

func TestResolveMissingFieldNullableOrDefaulted(t *testing.T) {
	writer := schema.NewRecord("R", schema.NewField("id", schema.New(schema.KindLong)))
	reader := schema.NewRecord("R",
		schema.NewField("id", schema.New(schema.KindLong)),
		schema.NewField("note", schema.New(schema.KindString)).AsNullable(),
	)

	g, err := Resolve(writer, reader)
	require.NoError(t, err)
	exec := g.(*symbol.Seq).Execution()
	require.Len(t, exec, 5)
	assert.Equal(t, &symbol.FieldOrder{Fields: []string{"id", "note"}}, exec[0])
	assert.Equal(t, &symbol.DefaultStart{Bytes: []byte{0, 0, 0, 0}}, exec[2], "null branch tag")
	assert.IsType(t, &symbol.Seq{}, exec[3])
	assert.Equal(t, &symbol.DefaultEnd{}, exec[4])
}

func TestResolveMissingFieldNullDefault(t *testing.T) {
	writer := schema.NewRecord("R", schema.NewField("id", schema.New(schema.KindLong)))
	reader := schema.NewRecord("R",
		schema.NewField("id", schema.New(schema.KindLong)),
		schema.NewField("note", schema.New(schema.KindString)).WithDefault(value.Null{}),
	)

	g, err := Resolve(writer, reader)
	require.NoError(t, err, "a null default on a required field is no default")
	e, ok := g.(*symbol.Error)
	require.True(t, ok)
	assert.Contains(t, e.Message, "missing required field note")
}

func TestResolveEnumRemap(t *testing.T) {
	writer := schema.NewEnum("E", "A", "B")
	reader := schema.NewEnum("E", "B", "A")

	g, err := Resolve(writer, reader)
	require.NoError(t, err)
	seq := g.(*symbol.Seq)
	assert.Equal(t, symbol.Enum, seq.Children[1])
	adj := seq.Children[0].(*symbol.EnumAdjust)
	assert.Equal(t, []int{1, 0}, adj.Mapping)
	assert.Equal(t, 2, adj.Cardinality)
	assert.Equal(t, []string{"B", "A"}, adj.Symbols)
}

func TestResolveEnumNoMatch(t *testing.T) {
	writer := schema.NewEnum("E", "A", "B", "C")
	reader := schema.NewEnum("E", "C", "A")

	g, err := Resolve(writer, reader)
	require.NoError(t, err)
	adj := g.(*symbol.Seq).Children[0].(*symbol.EnumAdjust)
	assert.Equal(t, []int{1, symbol.NoMatch, 0}, adj.Mapping)
	assert.Equal(t, 2, adj.Cardinality)
}

func TestResolveEnumNames(t *testing.T) {
	g, err := Resolve(schema.NewEnum("A", "X"), schema.NewEnum("B", "X"))
	require.NoError(t, err)
	assert.IsType(t, &symbol.Error{}, g)

	g, err = Resolve(schema.NewEnum("", "X"), schema.NewEnum("B", "X"))
	require.NoError(t, err)
	assert.IsType(t, &symbol.Seq{}, g, "anonymous writer enum matches any name")
}

func TestResolveFixed(t *testing.T) {
	g, err := Resolve(schema.NewFixed("H", 4), schema.NewFixed("H", 4))
	require.NoError(t, err)
	assert.Equal(t, symbol.NewSeq(&symbol.IntCheck{Expected: 4}, symbol.Fixed), g)

	g, err = Resolve(schema.NewFixed("H", 4), schema.NewFixed("H", 8))
	require.NoError(t, err)
	assert.Equal(t, &symbol.Error{Message: "Found fixed H, expecting fixed H"}, g)
}

func TestResolveContainersRecurse(t *testing.T) {
	g, err := Resolve(schema.NewArray(schema.New(schema.KindInt)), schema.NewArray(schema.New(schema.KindDouble)))
	require.NoError(t, err)
	rep := g.(*symbol.Seq).Children[0].(*symbol.Repeat)
	assert.Equal(t, &symbol.Resolve{Base: symbol.Int, Target: symbol.Double}, rep.Body)

	g, err = Resolve(schema.NewCounter(schema.New(schema.KindInt)), schema.NewCounter(schema.New(schema.KindLong)))
	require.NoError(t, err)
	rep = g.(*symbol.Seq).Children[0].(*symbol.Repeat)
	assert.Equal(t, symbol.CrdtEnd, rep.End)
	assert.Equal(t, symbol.Int, rep.Count)
	assert.Equal(t, &symbol.Resolve{Base: symbol.Int, Target: symbol.Long}, rep.Body)
}

// TestResolveCycleTermination resolves two distinct but identical
// recursive schemas and checks the grammar loops back on itself.
func TestResolveCycleTermination(t *testing.T) {
	g, err := Resolve(testutil.LinkedList(), testutil.LinkedList())
	require.NoError(t, err)

	seq := g.(*symbol.Seq)
	exec := seq.Execution()
	require.Len(t, exec, 3)
	union := exec[2].(*symbol.Seq)
	alt := union.Children[0].(*symbol.Alt)
	adj := alt.Branches[1].(*symbol.UnionAdjust)
	assert.Same(t, seq, adj.Inner)
	assert.False(t, symbol.Incomplete(g))
}

func TestResolveMutualRecursion(t *testing.T) {
	pkg := testutil.MustCompile(t, `
		record: A: fields: [{name: "b", type: "B", nullable: true}]
		record: B: fields: [{name: "a", type: {array: "A"}}]
	`)
	a := testutil.MustLookup(t, pkg, "A")

	g, err := Resolve(a, a)
	require.NoError(t, err)
	assert.False(t, symbol.Incomplete(g))
}

func TestResolveWriterRequiredReaderNullable(t *testing.T) {
	w := schema.NewRecord("R", schema.NewField("x", schema.New(schema.KindInt)))

	nullDefault := schema.NewRecord("R", schema.NewField("x", schema.New(schema.KindInt)).AsNullable())
	g, err := Resolve(w, nullDefault)
	require.NoError(t, err)
	assert.Equal(t, &symbol.UnionAdjust{Branch: 1, Inner: symbol.Int}, g.(*symbol.Seq).Execution()[1])

	valueDefault := schema.NewRecord("R", schema.NewField("x", schema.New(schema.KindInt)).AsNullable().WithDefault(value.Long(3)))
	g, err = Resolve(w, valueDefault)
	require.NoError(t, err)
	assert.Equal(t, &symbol.UnionAdjust{Branch: 0, Inner: symbol.Int}, g.(*symbol.Seq).Execution()[1])

	otherKind := schema.NewRecord("R", schema.NewField("x", schema.New(schema.KindLong)).AsNullable())
	g, err = Resolve(w, otherKind)
	require.NoError(t, err)
	assert.Equal(t, &symbol.Error{Message: "Found int, expecting long"}, g.(*symbol.Seq).Execution()[1])
}

func TestResolveWriterNullableReaderRequired(t *testing.T) {
	w := schema.NewRecord("R", schema.NewField("x", schema.New(schema.KindInt)).AsNullable())
	r := schema.NewRecord("R", schema.NewField("x", schema.New(schema.KindLong)))

	g, err := Resolve(w, r)
	require.NoError(t, err)
	union := g.(*symbol.Seq).Execution()[1].(*symbol.Seq)
	assert.Equal(t, &symbol.WriterUnionTag{}, union.Children[1])
	alt := union.Children[0].(*symbol.Alt)
	assert.Equal(t, []string{"null", "x"}, alt.Labels)
	assert.Equal(t, &symbol.Error{Message: "Found null, expecting long"}, alt.Branches[0])
	assert.Equal(t, &symbol.Resolve{Base: symbol.Int, Target: symbol.Long}, alt.Branches[1])
}

// TestResolveUnionPlacementDiffers checks that a writer with null first
// and a reader with null second get crossed branch adjustments.
func TestResolveUnionPlacementDiffers(t *testing.T) {
	w := schema.NewRecord("R", schema.NewField("x", schema.New(schema.KindInt)).AsNullable())
	r := schema.NewRecord("R", schema.NewField("x", schema.New(schema.KindInt)).AsNullable().WithDefault(value.Long(5)))

	g, err := Resolve(w, r)
	require.NoError(t, err)
	alt := g.(*symbol.Seq).Execution()[1].(*symbol.Seq).Children[0].(*symbol.Alt)
	assert.Equal(t, &symbol.UnionAdjust{Branch: 1, Inner: symbol.Null}, alt.Branches[0])
	assert.Equal(t, &symbol.UnionAdjust{Branch: 0, Inner: symbol.Int}, alt.Branches[1])
}

// TestBestBranchAnonymous pins name comparison for nullable reader
// branches: an anonymous writer only fills an anonymous reader, and any two
// anonymous types match regardless of structure.
func TestBestBranchAnonymous(t *testing.T) {
	anonW := schema.NewRecord("", schema.NewField("v", schema.New(schema.KindInt)))
	anonR := schema.NewRecord("", schema.NewField("w", schema.New(schema.KindString)))
	named := schema.NewRecord("Payload", schema.NewField("v", schema.New(schema.KindInt)))
	other := schema.NewRecord("Other", schema.NewField("v", schema.New(schema.KindInt)))

	assert.True(t, bestBranch(anonR, anonW))
	assert.True(t, bestBranch(named, named))
	assert.False(t, bestBranch(named, anonW))
	assert.False(t, bestBranch(anonR, named))
	assert.False(t, bestBranch(named, other))
	assert.False(t, bestBranch(named, schema.New(schema.KindInt)))

	assert.False(t, bestBranch(schema.NewEnum("E", "A"), schema.NewEnum("", "A")))
	assert.True(t, bestBranch(schema.NewEnum("", "A"), schema.NewEnum("", "B")))
	assert.False(t, bestBranch(schema.NewFixed("F", 4), schema.NewFixed("", 4)))

	resolveInner := func(w, r *schema.Node) symbol.Symbol {
		g, err := Resolve(
			schema.NewRecord("Outer", schema.NewField("p", w)),
			schema.NewRecord("Outer", schema.NewField("p", r).AsNullable()),
		)
		require.NoError(t, err)
		return g.(*symbol.Seq).Execution()[1]
	}

	adj, ok := resolveInner(anonW, anonR).(*symbol.UnionAdjust)
	require.True(t, ok)
	assert.Equal(t, 1, adj.Branch)

	e, ok := resolveInner(anonW, named).(*symbol.Error)
	require.True(t, ok)
	assert.Contains(t, e.Message, "expecting record Payload")
}

func TestResolveWildcard(t *testing.T) {
	_, err := Resolve(schema.New(schema.KindAny), schema.New(schema.KindInt))
	ce, ok := AsConfigError(err)
	require.True(t, ok)
	assert.Equal(t, ErrWildcardType, ce.Code)

	_, err = Resolve(schema.New(schema.KindInt), schema.New(schema.KindAny))
	_, ok = AsConfigError(err)
	assert.True(t, ok)
}

// TestResolveWildcardAnywhere checks that an any type fails construction
// even where the resolved grammar would never reach it.
func TestResolveWildcardAnywhere(t *testing.T) {
	tests := []struct {
		name   string
		writer *schema.Node
		reader *schema.Node
		field  string
	}{
		{
			name:   "under a kind mismatch",
			writer: schema.NewRecord("R", schema.NewField("a", schema.New(schema.KindInt))),
			reader: schema.NewRecord("R", schema.NewField("a", schema.NewArray(schema.New(schema.KindAny)))),
			field:  "a[]",
		},
		{
			name:   "required reader-only field",
			writer: schema.NewRecord("R"),
			reader: schema.NewRecord("R", schema.NewField("x", schema.New(schema.KindAny))),
			field:  "x",
		},
		{
			name:   "writer field the reader skips",
			writer: schema.NewRecord("R", schema.NewField("m", schema.NewMap(schema.New(schema.KindAny)))),
			reader: schema.NewRecord("R"),
			field:  "m[]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Resolve(tt.writer, tt.reader)
			require.Error(t, err)
			assert.Nil(t, g)
			ce, ok := AsConfigError(err)
			require.True(t, ok)
			assert.Equal(t, ErrWildcardType, ce.Code)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestResolveWildcardInCycle(t *testing.T) {
	node := schema.NewRecord("Node", schema.NewField("v", schema.New(schema.KindLong)))
	node.Fields = append(node.Fields, schema.NewField("next", node).AsNullable())

	_, err := Resolve(node, node)
	require.NoError(t, err)

	withAny := schema.NewRecord("Node", schema.NewField("v", schema.New(schema.KindLong)))
	withAny.Fields = append(withAny.Fields,
		schema.NewField("next", withAny).AsNullable(),
		schema.NewField("extra", schema.New(schema.KindAny)).AsNullable(),
	)
	_, err = Resolve(node, withAny)
	ce, ok := AsConfigError(err)
	require.True(t, ok)
	assert.Equal(t, "extra", ce.Field)
}

func TestResolveBadDefaultFailsConstruction(t *testing.T) {
	tests := []struct {
		name  string
		field *schema.Field
		code  string
	}{
		{"type mismatch", schema.NewField("n", schema.New(schema.KindInt)).WithDefault(value.String("x")), ErrDefaultMismatch},
		{"counter", schema.NewField("n", schema.NewCounter(schema.New(schema.KindLong))).WithDefault(value.Long(3)), ErrCounterDefault},
		{"enum", schema.NewField("n", schema.NewEnum("E", "A")).WithDefault(value.String("Z")), ErrUnknownSymbol},
		{"nested", schema.NewField("n", testutil.Wrap("W", schema.New(schema.KindInt))).WithDefault(value.Object{}), ErrMissingDefault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := schema.NewRecord("R")
			r := schema.NewRecord("R", tt.field)

			_, err := Resolve(w, r)
			require.Error(t, err)
			ce, ok := AsConfigError(err)
			require.True(t, ok)
			assert.Equal(t, tt.code, ce.Code)
			assert.Contains(t, err.Error(), "record R field n")
		})
	}
}

// TestResolveConcurrent checks that concurrent resolutions over shared
// schemas produce identical grammars.
func TestResolveConcurrent(t *testing.T) {
	w := testutil.UserV1()
	r := testutil.UserV2()
	c := NewCompiler(zerolog.Nop())

	first, err := c.Resolve(w, r)
	require.NoError(t, err)
	want := symbol.Dump(first)

	var wg sync.WaitGroup
	dumps := make([]string, 16)
	for i := range dumps {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := c.Resolve(w, r)
			if err == nil {
				dumps[i] = symbol.Dump(g)
			}
		}(i)
	}
	wg.Wait()

	for _, d := range dumps {
		assert.Equal(t, want, d)
	}
}

func TestResolveFreshCachePerCall(t *testing.T) {
	list := testutil.LinkedList()
	g1, err := Resolve(list, list)
	require.NoError(t, err)
	g2, err := Resolve(list, list)
	require.NoError(t, err)
	assert.NotSame(t, g1, g2)
	assert.Equal(t, symbol.Dump(g1), symbol.Dump(g2))
}
