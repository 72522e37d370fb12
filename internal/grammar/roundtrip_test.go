package grammar

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evolve/internal/codec"
	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/symbol"
	"github.com/roach88/evolve/internal/testutil"
	"github.com/roach88/evolve/internal/value"
)

func listValue(vals ...int64) value.Value {
	var v value.Value = value.Null{}
	for i := len(vals) - 1; i >= 0; i-- {
		v = value.Object{"value": value.Long(vals[i]), "next": v}
	}
	return v
}

// TestResolveNeutrality checks that resolving a schema against itself
// reads exactly what the base grammar reads.
func TestResolveNeutrality(t *testing.T) {
	tests := []struct {
		name   string
		schema *schema.Node
		value  value.Value
	}{
		{"everything", testutil.Everything(), testutil.EverythingValue()},
		{"user", testutil.UserV1(), value.Object{"id": value.Long(1), "name": value.String("ann")}},
		{"list", testutil.LinkedList(), listValue(1, 2, 3)},
		{"tree", testutil.Tree(), value.Object{
			"label": value.String("root"),
			"children": value.Array{
				value.Object{"label": value.String("leaf"), "children": value.Array{}},
			},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := codec.Encode(tt.schema, tt.value)
			require.NoError(t, err)

			base, err := Generate(tt.schema)
			require.NoError(t, err)
			resolved, err := Resolve(tt.schema, tt.schema)
			require.NoError(t, err)

			var baseTrace, resolvedTrace codec.Trace
			_, err = codec.Decode(base, data, codec.WithTrace(&baseTrace))
			require.NoError(t, err)
			_, err = codec.Decode(resolved, data, codec.WithTrace(&resolvedTrace))
			require.NoError(t, err)

			assert.NotEmpty(t, baseTrace.Reads)
			assert.Equal(t, baseTrace.Reads, resolvedTrace.Reads)
		})
	}
}

func TestResolveIdentityValues(t *testing.T) {
	s := testutil.Everything()
	data, err := codec.Encode(s, testutil.EverythingValue())
	require.NoError(t, err)
	g, err := Resolve(s, s)
	require.NoError(t, err)

	got, err := codec.Decode(g, data)
	require.NoError(t, err)
	rec, ok := got.(value.Record)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "i", "l", "f", "d", "s", "u", "raw", "ts", "num", "doc", "hash", "color", "tags", "attrs", "hits", "maybe", "inner"}, rec.Names())

	get := func(name string) value.Value {
		v, _ := rec.Get(name)
		return v
	}
	assert.Equal(t, value.Int(-7), get("i"))
	assert.Equal(t, value.Long(1<<40), get("l"))
	assert.Equal(t, value.String("héllo"), get("s"))
	assert.Equal(t, value.Bytes{0xDE, 0xAD, 0xBE, 0xEF}, get("hash"))
	assert.Equal(t, value.Enum{Index: 1, Symbol: "GREEN"}, get("color"))
	assert.Equal(t, value.Object{"x": value.Int(1), "y": value.Int(2)}, get("attrs"))
	assert.Equal(t, value.Long(7), get("hits"))
	assert.Equal(t, value.Int(9), get("maybe"))
	assert.Equal(t, value.NewRecord(value.F("x", value.Int(5))), get("inner"))
	assert.Len(t, get("u"), 16)
}

// TestResolveEvolution reads UserV1 data as UserV2: id widens, email is
// skipped, status, visits, and nickname come from defaults.
func TestResolveEvolution(t *testing.T) {
	data, err := codec.Encode(testutil.UserV1(), value.Object{
		"id":    value.Long(7),
		"name":  value.String("ann"),
		"email": value.String("ann@example.com"),
	})
	require.NoError(t, err)

	g, err := Resolve(testutil.UserV1(), testutil.UserV2())
	require.NoError(t, err)

	var trace codec.Trace
	got, err := codec.Decode(g, data, codec.WithTrace(&trace))
	require.NoError(t, err)

	want := value.NewRecord(
		value.F("id", value.Double(7)),
		value.F("name", value.String("ann")),
		value.F("status", value.Enum{Index: 0, Symbol: "ACTIVE"}),
		value.F("visits", value.Long(0)),
		value.F("nickname", value.Null{}),
	)
	assert.Equal(t, want, got)

	input := trace.Input()
	require.Len(t, input, 6, "id, name length and body, email tag, email length and body")
	assert.Equal(t, "long", input[0].Kind)
	assert.Equal(t, len(data), input[len(input)-1].Offset+input[len(input)-1].Len)
	assert.Greater(t, len(trace.Reads), len(input))
}

func TestResolveMissingFieldFailsAtDecode(t *testing.T) {
	writer := schema.NewRecord("User", schema.NewField("id", schema.New(schema.KindLong)))
	reader := schema.NewRecord("User",
		schema.NewField("id", schema.New(schema.KindLong)),
		schema.NewField("email", schema.New(schema.KindString)),
	)
	data, err := codec.Encode(writer, value.Object{"id": value.Long(1)})
	require.NoError(t, err)

	g, err := Resolve(writer, reader)
	require.NoError(t, err)

	_, err = codec.Decode(g, data)
	require.Error(t, err)
	var se *symbol.Error
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Message, "missing required field email")
}

func TestResolveEnumDecode(t *testing.T) {
	writer := testutil.Wrap("W", schema.NewEnum("E", "A", "B", "C"))
	reader := testutil.Wrap("W", schema.NewEnum("E", "C", "A"))
	g, err := Resolve(writer, reader)
	require.NoError(t, err)

	data, err := codec.Encode(writer, value.Object{"v": value.String("C")})
	require.NoError(t, err)
	got, err := codec.Decode(g, data)
	require.NoError(t, err)
	assert.Equal(t, value.NewRecord(value.F("v", value.Enum{Index: 0, Symbol: "C"})), got)

	data, err = codec.Encode(writer, value.Object{"v": value.String("B")})
	require.NoError(t, err)
	_, err = codec.Decode(g, data)
	var de *codec.DecodeError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "writer enum ordinal 1 has no reader symbol", de.Message)
}

func TestResolveRecursiveDecode(t *testing.T) {
	list := testutil.LinkedList()
	data, err := codec.Encode(list, listValue(1, 2))
	require.NoError(t, err)

	g, err := Resolve(list, testutil.LinkedList())
	require.NoError(t, err)
	got, err := codec.Decode(g, data)
	require.NoError(t, err)

	want := value.NewRecord(
		value.F("value", value.Long(1)),
		value.F("next", value.NewRecord(
			value.F("value", value.Long(2)),
			value.F("next", value.Null{}),
		)),
	)
	assert.Equal(t, want, got)
}

func TestResolveNullableWriterNullFailsForRequiredReader(t *testing.T) {
	w := schema.NewRecord("R", schema.NewField("x", schema.New(schema.KindInt)).AsNullable())
	r := schema.NewRecord("R", schema.NewField("x", schema.New(schema.KindLong)))
	g, err := Resolve(w, r)
	require.NoError(t, err)

	data, err := codec.Encode(w, value.Object{"x": value.Int(4)})
	require.NoError(t, err)
	got, err := codec.Decode(g, data)
	require.NoError(t, err)
	assert.Equal(t, value.NewRecord(value.F("x", value.Long(4))), got)

	data, err = codec.Encode(w, value.Object{})
	require.NoError(t, err)
	_, err = codec.Decode(g, data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Found null, expecting long")
}

// TestDefaultRoundTrip checks that each embedded default decodes back to
// the declared default.
func TestDefaultRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		field *schema.Field
		want  value.Value
	}{
		{"long", schema.NewField("x", schema.New(schema.KindLong)).WithDefault(value.Long(9)), value.Long(9)},
		{"string", schema.NewField("x", schema.New(schema.KindString)).WithDefault(value.String("hi")), value.String("hi")},
		{"enum", schema.NewField("x", schema.NewEnum("E", "A", "B")).WithDefault(value.String("B")), value.Enum{Index: 1, Symbol: "B"}},
		{"nullable value", schema.NewField("x", schema.New(schema.KindInt)).AsNullable().WithDefault(value.Long(3)), value.Int(3)},
		{"nullable null", schema.NewField("x", schema.New(schema.KindInt)).AsNullable(), value.Null{}},
		{"array", schema.NewField("x", schema.NewArray(schema.New(schema.KindInt))).WithDefault(value.Array{}), value.Array{}},
		{"counter", schema.NewField("x", schema.NewCounter(schema.New(schema.KindLong))).WithDefault(value.Long(0)), value.Long(0)},
		{"boolean", schema.NewField("x", schema.New(schema.KindBoolean)).WithDefault(value.Bool(true)), value.Bool(true)},
		{"float", schema.NewField("x", schema.New(schema.KindFloat)).WithDefault(value.Double(1.5)), value.Float(1.5)},
		{"double", schema.NewField("x", schema.New(schema.KindDouble)).WithDefault(value.Double(2.25)), value.Double(2.25)},
		{"bytes", schema.NewField("x", schema.New(schema.KindBytes)).WithDefault(value.Bytes{1, 2}), value.Bytes{1, 2}},
		{"timestamp", schema.NewField("x", schema.New(schema.KindTimestamp)).WithDefault(value.String("2024-01-02")), value.Bytes("2024-01-02")},
		{
			"uuid",
			schema.NewField("x", schema.NewUUID()).WithDefault(value.String("6ba7b810-9dad-11d1-80b4-00c04fd430c8")),
			value.Bytes{0x6b, 0xa7, 0xb8, 0x10, 0x9d, 0xad, 0x11, 0xd1, 0x80, 0xb4, 0x00, 0xc0, 0x4f, 0xd4, 0x30, 0xc8},
		},
		{"fixed padded", schema.NewField("x", schema.NewFixed("F", 4)).WithDefault(value.Bytes{1, 2}), value.Bytes{1, 2, 0, 0}},
		{"fixed truncated", schema.NewField("x", schema.NewFixed("F", 4)).WithDefault(value.Bytes{1, 2, 3, 4, 5, 6}), value.Bytes{1, 2, 3, 4}},
		{
			"record falls back to sub-field defaults",
			schema.NewField("x", schema.NewRecord("Inner",
				schema.NewField("a", schema.New(schema.KindLong)),
				schema.NewField("b", schema.New(schema.KindString)).WithDefault(value.String("z")),
				schema.NewField("c", schema.New(schema.KindInt)).AsNullable(),
			)).WithDefault(value.Object{"a": value.Long(5)}),
			value.NewRecord(value.F("a", value.Long(5)), value.F("b", value.String("z")), value.F("c", value.Null{})),
		},
	}

	writer := schema.NewRecord("R", schema.NewField("id", schema.New(schema.KindInt)))
	data, err := codec.Encode(writer, value.Object{"id": value.Int(1)})
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := schema.NewRecord("R", schema.NewField("id", schema.New(schema.KindInt)), tt.field)
			g, err := Resolve(writer, reader)
			require.NoError(t, err)

			got, err := codec.Decode(g, data)
			require.NoError(t, err)
			v, ok := got.(value.Record).Get("x")
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
		})
	}
}

// TestResolveReorderWithDefault follows {a:int, b:string} read as
// {b:string, c:long=0}: a is skipped, b is read, c comes from its default.
func TestResolveReorderWithDefault(t *testing.T) {
	writer := schema.NewRecord("T",
		schema.NewField("a", schema.New(schema.KindInt)),
		schema.NewField("b", schema.New(schema.KindString)),
	)
	reader := schema.NewRecord("T",
		schema.NewField("b", schema.New(schema.KindString)),
		schema.NewField("c", schema.New(schema.KindLong)).WithDefault(value.Long(0)),
	)

	g, err := Resolve(writer, reader)
	require.NoError(t, err)
	seq := g.(*symbol.Seq)
	require.Equal(t, 6, seq.Len())
	assert.Equal(t, []symbol.Symbol{
		&symbol.FieldOrder{Fields: []string{"b", "c"}},
		&symbol.Skip{Inner: symbol.Int},
		symbol.String,
		&symbol.DefaultStart{Bytes: make([]byte, 8)},
		symbol.Long,
		&symbol.DefaultEnd{},
	}, seq.Execution())

	data, err := codec.Encode(writer, value.Object{"a": value.Int(7), "b": value.String("hi")})
	require.NoError(t, err)

	var trace codec.Trace
	got, err := codec.Decode(g, data, codec.WithTrace(&trace))
	require.NoError(t, err)
	assert.Equal(t, value.NewRecord(value.F("b", value.String("hi")), value.F("c", value.Long(0))), got)

	var fromDefault []codec.Read
	for _, r := range trace.Reads {
		if r.Default {
			fromDefault = append(fromDefault, r)
		}
	}
	require.Len(t, fromDefault, 1)
	assert.Equal(t, codec.Read{Kind: "long", Offset: 0, Len: 8, Default: true}, fromDefault[0])
}
