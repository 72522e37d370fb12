package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAny(t *testing.T) {
	v, err := FromAny(map[string]any{
		"id":    7,
		"score": 1.5,
		"tags":  []any{"a", nil, true},
		"raw":   []byte{1},
	})
	require.NoError(t, err)

	assert.True(t, Equal(Object{
		"id":    Long(7),
		"score": Double(1.5),
		"tags":  Array{String("a"), Null{}, Bool(true)},
		"raw":   Bytes{1},
	}, v))
}

func TestFromAnyErrors(t *testing.T) {
	_, err := FromAny(struct{}{})
	assert.ErrorContains(t, err, "unsupported type: struct {}")

	_, err = FromAny([]any{1, map[string]any{"x": uint64(math.MaxUint64)}})
	assert.ErrorContains(t, err, `array[1]: object["x"]: integer out of int64 range`)
}

func TestFromAnyPassesValuesThrough(t *testing.T) {
	v, err := FromAny(Enum{Index: 2, Symbol: "C"})
	require.NoError(t, err)
	assert.Equal(t, Enum{Index: 2, Symbol: "C"}, v)
}

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"nulls", Null{}, Null{}, true},
		{"nil vs null", nil, Null{}, false},
		{"int vs long", Int(1), Long(1), false},
		{"NaN equals itself bitwise", Double(math.NaN()), Double(math.NaN()), true},
		{"bytes", Bytes{1, 2}, Bytes{1, 2}, true},
		{"record order matters", NewRecord(F("a", Long(1)), F("b", Long(2))), NewRecord(F("b", Long(2)), F("a", Long(1))), false},
		{"object order does not", Object{"a": Long(1), "b": Long(2)}, Object{"b": Long(2), "a": Long(1)}, true},
		{"record vs object", NewRecord(F("a", Long(1))), Object{"a": Long(1)}, false},
		{"nested arrays", Array{Array{Long(1)}}, Array{Array{Long(1)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestNumericConversions(t *testing.T) {
	n, ok := AsInt32(Long(math.MaxInt32 + 1))
	assert.False(t, ok)
	n, ok = AsInt32(Long(-5))
	assert.True(t, ok)
	assert.Equal(t, int32(-5), n)

	_, ok = AsInt64(Double(1))
	assert.False(t, ok, "doubles are not integral values")

	_, ok = AsFloat32(Double(math.MaxFloat64))
	assert.False(t, ok)
	f, ok := AsFloat32(Long(3))
	assert.True(t, ok)
	assert.Equal(t, float32(3), f)

	assert.True(t, IsZero(Double(0)))
	assert.False(t, IsZero(String("0")))
}

func TestLookup(t *testing.T) {
	rec := NewRecord(F("a", Long(1)))
	v, ok := Lookup(rec, "a")
	require.True(t, ok)
	assert.Equal(t, Long(1), v)

	_, ok = Lookup(Object{"a": Null{}}, "b")
	assert.False(t, ok)
	_, ok = Lookup(Null{}, "a")
	assert.False(t, ok)

	assert.Equal(t, []string{"a"}, rec.Names())
	assert.True(t, IsNull(nil))
	assert.True(t, IsNull(Null{}))
	assert.False(t, IsNull(Long(0)))
}
