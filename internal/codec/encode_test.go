package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/testutil"
	"github.com/roach88/evolve/internal/value"
)

func TestEncodePrimitives(t *testing.T) {
	tests := []struct {
		name string
		node *schema.Node
		v    value.Value
		want []byte
	}{
		{"boolean", schema.New(schema.KindBoolean), value.Bool(false), []byte{0}},
		{"int", schema.New(schema.KindInt), value.Long(258), []byte{0, 0, 1, 2}},
		{"long", schema.New(schema.KindLong), value.Int(-1), []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
		{"double", schema.New(schema.KindDouble), value.Double(1), []byte{0x3F, 0xF0, 0, 0, 0, 0, 0, 0}},
		{"string", schema.New(schema.KindString), value.String("ab"), []byte{0, 0, 0, 2, 'a', 'b'}},
		{"bytes", schema.New(schema.KindBytes), value.Bytes{9}, []byte{0, 0, 0, 1, 9}},
		{"number", schema.New(schema.KindNumber), value.Double(0.5), []byte{0, 0, 0, 3, '0', '.', '5'}},
		{"json", schema.New(schema.KindJSON), value.Object{"b": value.Long(1), "a": value.Bool(true)},
			append([]byte{0, 0, 0, 16}, `{"a":true,"b":1}`...)},
		{"fixed", schema.NewFixed("F", 2), value.Bytes{7, 8}, []byte{7, 8}},
		{"enum", schema.NewEnum("E", "X", "Y"), value.String("Y"), []byte{0, 0, 0, 1}},
		{"enum by ordinal", schema.NewEnum("E", "X", "Y"), value.Enum{Index: 1}, []byte{0, 0, 0, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.node, tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncodeContainers(t *testing.T) {
	arr, err := Encode(schema.NewArray(schema.New(schema.KindInt)), value.Array{value.Int(1), value.Int(2)})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 2, 0, 0, 0, 1, 0, 0, 0, 2}, arr)

	m, err := Encode(schema.NewMap(schema.New(schema.KindBoolean)), value.Object{"b": value.Bool(true), "a": value.Bool(false)})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 2, 0, 0, 0, 1, 'a', 0, 0, 0, 0, 1, 'b', 1}, m, "keys are written in sorted order")

	single, err := Encode(schema.NewCounter(schema.New(schema.KindInt)), value.Long(5))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 1, 0, 0, 0, 5}, single)

	shards, err := Encode(schema.NewCounter(schema.New(schema.KindInt)), value.Array{value.Int(1), value.Int(2)})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 2, 0, 0, 0, 1, 0, 0, 0, 2}, shards)
}

func TestEncodeRecordFallbacks(t *testing.T) {
	rec := schema.NewRecord("R",
		schema.NewField("a", schema.New(schema.KindInt)).WithDefault(value.Long(3)),
		schema.NewField("b", schema.New(schema.KindInt)).AsNullable(),
		schema.NewField("c", schema.New(schema.KindInt)).AsNullable().WithDefault(value.Long(4)),
	)

	got, err := Encode(rec, value.Object{})
	require.NoError(t, err)
	want := []byte{
		0, 0, 0, 3, // a default
		0, 0, 0, 0, // b null, branch 0
		0, 0, 0, 0, 0, 0, 0, 4, // c value, branch 0
	}
	assert.Equal(t, want, got)

	got, err = Encode(rec, value.NewRecord(value.F("a", value.Int(1)), value.F("b", value.Int(2)), value.F("c", value.Null{})))
	require.NoError(t, err)
	want = []byte{
		0, 0, 0, 1,
		0, 0, 0, 1, 0, 0, 0, 2, // b value, branch 1
		0, 0, 0, 1, // c null, branch 1
	}
	assert.Equal(t, want, got)
}

func TestEncodeUUID(t *testing.T) {
	got, err := Encode(schema.NewUUID(), value.String("6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
	require.NoError(t, err)
	require.Len(t, got, 20)
	assert.Equal(t, []byte{0, 0, 0, 16, 0x6b, 0xa7}, got[:6])

	_, err = Encode(schema.NewUUID(), value.String("not-a-uuid"))
	assert.Error(t, err)
	_, err = Encode(schema.NewUUID(), value.Bytes{1, 2})
	assert.Error(t, err)
}

func TestEncodeErrors(t *testing.T) {
	rec := schema.NewRecord("R",
		schema.NewField("id", schema.New(schema.KindLong)),
		schema.NewField("tags", schema.NewArray(schema.New(schema.KindString))),
	)

	tests := []struct {
		name string
		node *schema.Node
		v    value.Value
		path string
	}{
		{"missing required field", rec, value.Object{"tags": value.Array{}}, "$.id"},
		{"null for required field", rec, value.Object{"id": value.Null{}, "tags": value.Array{}}, "$.id"},
		{"nested element", rec, value.Object{"id": value.Long(1), "tags": value.Array{value.String("a"), value.Long(2)}}, "$.tags[1]"},
		{"not a record", rec, value.Long(1), "$"},
		{"int overflow", schema.New(schema.KindInt), value.Long(1 << 40), "$"},
		{"fixed size", schema.NewFixed("F", 2), value.Bytes{1}, "$"},
		{"unknown symbol", schema.NewEnum("E", "X"), value.String("Z"), "$"},
		{"bad number", schema.New(schema.KindNumber), value.String("twelve"), "$"},
		{"any", schema.New(schema.KindAny), value.Long(1), "$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.node, tt.v)
			require.Error(t, err)
			var ee *EncodeError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tt.path, ee.Path)
		})
	}
}

func TestEncodeEverything(t *testing.T) {
	data, err := Encode(testutil.Everything(), testutil.EverythingValue())
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
