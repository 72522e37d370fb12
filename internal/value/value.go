package value

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the values a record field can hold.
type Value interface {
	value() // Sealed - only types in this package implement it
}

// Null is the null value. A field whose default is Null has a default; a
// field with a nil default has none.
type Null struct{}

func (Null) value() {}

// Bool is a boolean value.
type Bool bool

func (Bool) value() {}

// Int is a 32-bit integer value.
type Int int32

func (Int) value() {}

// Long is a 64-bit integer value.
type Long int64

func (Long) value() {}

// Float is a 32-bit floating point value.
type Float float32

func (Float) value() {}

// Double is a 64-bit floating point value.
type Double float64

func (Double) value() {}

// String is a text value.
type String string

func (String) value() {}

// Bytes is a binary value (bytes, fixed, timestamps and other opaque kinds).
type Bytes []byte

func (Bytes) value() {}

// Array is an ordered list of values.
type Array []Value

func (Array) value() {}

// Object is an unordered map of string keys to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) value() {}

// Field is one named entry of a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered list of named fields.
type Record struct {
	Fields []Field
}

func (Record) value() {}

// Enum is an enum value. Symbol is empty when only the ordinal is known.
type Enum struct {
	Index  int
	Symbol string
}

func (Enum) value() {}

// NewRecord creates a Record from fields in order.
func NewRecord(fields ...Field) Record {
	return Record{Fields: fields}
}

// F is a shorthand for Field for ergonomic construction.
// Example: NewRecord(F("id", Long(1)), F("name", String("cart")))
func F(name string, v Value) Field {
	return Field{Name: name, Value: v}
}

// Get returns the value of the named field.
func (r Record) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Names returns the field names in order.
func (r Record) Names() []string {
	names := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		names[i] = f.Name
	}
	return names
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units as required by
// RFC 8785. Go's string comparison uses UTF-8 bytes, which orders
// supplementary-plane characters differently.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Lookup returns the named entry of a Record or Object.
// Any other value, including Null, has no entries.
func Lookup(v Value, name string) (Value, bool) {
	switch val := v.(type) {
	case Record:
		return val.Get(name)
	case Object:
		f, ok := val[name]
		return f, ok
	default:
		return nil, false
	}
}

// AsInt32 converts an integral value to int32 if it fits.
func AsInt32(v Value) (int32, bool) {
	n, ok := AsInt64(v)
	if !ok || n < math.MinInt32 || n > math.MaxInt32 {
		return 0, false
	}
	return int32(n), true
}

// AsInt64 converts an integral value to int64.
func AsInt64(v Value) (int64, bool) {
	switch val := v.(type) {
	case Int:
		return int64(val), true
	case Long:
		return int64(val), true
	default:
		return 0, false
	}
}

// AsFloat64 converts any numeric value to float64.
func AsFloat64(v Value) (float64, bool) {
	switch val := v.(type) {
	case Int:
		return float64(val), true
	case Long:
		return float64(val), true
	case Float:
		return float64(val), true
	case Double:
		return float64(val), true
	default:
		return 0, false
	}
}

// AsFloat32 converts any numeric value to float32.
// Doubles outside the float32 range are rejected.
func AsFloat32(v Value) (float32, bool) {
	f, ok := AsFloat64(v)
	if !ok {
		return 0, false
	}
	if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
		return 0, false
	}
	return float32(f), true
}

// IsZero reports whether v is a numeric zero.
func IsZero(v Value) bool {
	f, ok := AsFloat64(v)
	return ok && f == 0
}

// FromAny converts a decoded YAML/JSON tree into a Value.
// Maps become Objects; integers become Longs; floats become Doubles.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Long(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Long(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer out of int64 range: %d", val)
		}
		return Long(val), nil
	case float32:
		return Float(val), nil
	case float64:
		return Double(val), nil
	case string:
		return String(val), nil
	case []byte:
		return Bytes(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj[k] = conv
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// Equal reports whether a and b are structurally equal.
// Records compare field by field in order; Objects compare by key.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Long:
		bv, ok := b.(Long)
		return ok && av == bv
	case Float:
		bv, ok := b.(Float)
		return ok && math.Float32bits(float32(av)) == math.Float32bits(float32(bv))
	case Double:
		bv, ok := b.(Double)
		return ok && math.Float64bits(float64(av)) == math.Float64bits(float64(bv))
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bytes:
		bv, ok := b.(Bytes)
		return ok && bytes.Equal(av, bv)
	case Enum:
		bv, ok := b.(Enum)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, found := bv[k]
			if !found || !Equal(v, other) {
				return false
			}
		}
		return true
	case Record:
		bv, ok := b.(Record)
		if !ok || len(av.Fields) != len(bv.Fields) {
			return false
		}
		for i := range av.Fields {
			if av.Fields[i].Name != bv.Fields[i].Name || !Equal(av.Fields[i].Value, bv.Fields[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
