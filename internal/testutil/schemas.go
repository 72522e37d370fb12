package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/value"
)

// MustCompile compiles CUE schema source or fails the test.
func MustCompile(t testing.TB, src string) *schema.Package {
	t.Helper()
	pkg, err := schema.CompileSource("fixture.cue", []byte(src))
	require.NoError(t, err)
	return pkg
}

// MustLookup returns a named type from a package or fails the test.
func MustLookup(t testing.TB, pkg *schema.Package, name string) *schema.Node {
	t.Helper()
	n, ok := pkg.Lookup(name)
	require.True(t, ok, "type %s not declared", name)
	return n
}

// Primitive creates a fresh node of a primitive kind.
func Primitive(kind schema.Kind) *schema.Node {
	return schema.New(kind)
}

// Wrap creates a single-field record named name around t. Resolution
// tests use it to compare bare types through a record.
func Wrap(name string, t *schema.Node) *schema.Node {
	return schema.NewRecord(name, schema.NewField("v", t))
}

// UserV1 is the original user schema: id, name, email.
func UserV1() *schema.Node {
	return schema.NewRecord("User",
		schema.NewField("id", schema.New(schema.KindLong)),
		schema.NewField("name", schema.New(schema.KindString)),
		schema.NewField("email", schema.New(schema.KindString)).AsNullable(),
	)
}

// UserV2 evolves UserV1: fields reordered, id widened, email dropped,
// status and visits added with defaults.
func UserV2() *schema.Node {
	status := schema.NewEnum("Status", "ACTIVE", "BANNED")
	return schema.NewRecord("User",
		schema.NewField("name", schema.New(schema.KindString)),
		schema.NewField("id", schema.New(schema.KindDouble)),
		schema.NewField("status", status).WithDefault(value.String("ACTIVE")),
		schema.NewField("visits", schema.NewCounter(schema.New(schema.KindLong))).WithDefault(value.Long(0)),
		schema.NewField("nickname", schema.New(schema.KindString)).AsNullable(),
	)
}

// LinkedList is a self-referencing record: value plus nullable next.
func LinkedList() *schema.Node {
	list := schema.NewRecord("List", schema.NewField("value", schema.New(schema.KindLong)))
	list.Fields = append(list.Fields, schema.NewField("next", list).AsNullable())
	return list
}

// Tree is a record that recurses through an array.
func Tree() *schema.Node {
	tree := schema.NewRecord("Tree", schema.NewField("label", schema.New(schema.KindString)))
	tree.Fields = append(tree.Fields, schema.NewField("children", schema.NewArray(tree)))
	return tree
}

// Everything is a record with one field of every resolvable kind.
func Everything() *schema.Node {
	return schema.NewRecord("Everything",
		schema.NewField("b", schema.New(schema.KindBoolean)),
		schema.NewField("i", schema.New(schema.KindInt)),
		schema.NewField("l", schema.New(schema.KindLong)),
		schema.NewField("f", schema.New(schema.KindFloat)),
		schema.NewField("d", schema.New(schema.KindDouble)),
		schema.NewField("s", schema.New(schema.KindString)),
		schema.NewField("u", schema.NewUUID()),
		schema.NewField("raw", schema.New(schema.KindBytes)),
		schema.NewField("ts", schema.New(schema.KindTimestamp)),
		schema.NewField("num", schema.New(schema.KindNumber)),
		schema.NewField("doc", schema.New(schema.KindJSON)),
		schema.NewField("hash", schema.NewFixed("Hash", 4)),
		schema.NewField("color", schema.NewEnum("Color", "RED", "GREEN", "BLUE")),
		schema.NewField("tags", schema.NewArray(schema.New(schema.KindString))),
		schema.NewField("attrs", schema.NewMap(schema.New(schema.KindInt))),
		schema.NewField("hits", schema.NewCounter(schema.New(schema.KindLong))),
		schema.NewField("maybe", schema.New(schema.KindInt)).AsNullable(),
		schema.NewField("inner", schema.NewRecord("Inner", schema.NewField("x", schema.New(schema.KindInt)))),
	)
}

// EverythingValue is a value that fits Everything.
func EverythingValue() value.Record {
	return value.NewRecord(
		value.F("b", value.Bool(true)),
		value.F("i", value.Int(-7)),
		value.F("l", value.Long(1<<40)),
		value.F("f", value.Float(1.5)),
		value.F("d", value.Double(2.25)),
		value.F("s", value.String("héllo")),
		value.F("u", value.String("6ba7b810-9dad-11d1-80b4-00c04fd430c8")),
		value.F("raw", value.Bytes{0, 1, 2}),
		value.F("ts", value.String("2026-01-02T03:04:05Z")),
		value.F("num", value.Long(42)),
		value.F("doc", value.Object{"k": value.Array{value.Long(1)}}),
		value.F("hash", value.Bytes{0xDE, 0xAD, 0xBE, 0xEF}),
		value.F("color", value.String("GREEN")),
		value.F("tags", value.Array{value.String("a"), value.String("b")}),
		value.F("attrs", value.Object{"x": value.Int(1), "y": value.Int(2)}),
		value.F("hits", value.Array{value.Long(3), value.Long(4)}),
		value.F("maybe", value.Int(9)),
		value.F("inner", value.NewRecord(value.F("x", value.Int(5)))),
	)
}
