package grammar

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/value"
	"github.com/roach88/evolve/internal/wire"
)

// maxDefaultDepth bounds record defaults that keep falling back to their
// own sub-field defaults through a recursive schema.
const maxDefaultDepth = 64

// EncodeDefault encodes a field's default as the bytes its own grammar
// reads. A nullable field without a default encodes null.
func EncodeDefault(f *schema.Field) ([]byte, error) {
	e := &defaultEncoder{w: wire.NewWriter()}
	if err := e.field(f, f.Default, f.HasDefault, f.Name, 0); err != nil {
		return nil, err
	}
	return e.w.Bytes(), nil
}

type defaultEncoder struct {
	w *wire.Writer
}

// field encodes v for f, or f's absence of a value when present is false.
func (e *defaultEncoder) field(f *schema.Field, v value.Value, present bool, path string, depth int) error {
	if !present {
		if !f.Nullable {
			return configErr(ErrMissingDefault, path, "required field has no default")
		}
		v = value.Null{}
	}

	if f.Nullable {
		if value.IsNull(v) {
			return e.w.WriteCount(f.NullIndex())
		}
		if err := e.w.WriteCount(f.ValueIndex()); err != nil {
			return err
		}
	}
	return e.value(f.Type, v, path, depth)
}

func (e *defaultEncoder) value(n *schema.Node, v value.Value, path string, depth int) error {
	bad := func() error {
		return configErr(ErrDefaultMismatch, path, "default %s does not fit %s", describeValue(v), schema.Describe(n))
	}

	switch n.Kind {
	case schema.KindBoolean:
		b, ok := v.(value.Bool)
		if !ok {
			return bad()
		}
		e.w.WriteBool(bool(b))

	case schema.KindInt:
		i, ok := value.AsInt32(v)
		if !ok {
			return bad()
		}
		e.w.WriteInt(i)

	case schema.KindLong:
		l, ok := value.AsInt64(v)
		if !ok {
			return bad()
		}
		e.w.WriteLong(l)

	case schema.KindFloat:
		f, ok := value.AsFloat32(v)
		if !ok {
			return bad()
		}
		e.w.WriteFloat(f)

	case schema.KindDouble:
		f, ok := value.AsFloat64(v)
		if !ok {
			return bad()
		}
		e.w.WriteDouble(f)

	case schema.KindString:
		s, ok := v.(value.String)
		if !ok {
			return bad()
		}
		if n.UUID {
			u, err := uuid.Parse(string(s))
			if err != nil {
				return configErr(ErrDefaultMismatch, path, "default %q is not a UUID: %v", string(s), err)
			}
			return e.w.WriteBytes(u[:])
		}
		return e.w.WriteString(string(s))

	case schema.KindBytes, schema.KindTimestamp:
		b, ok := rawBytes(v)
		if !ok {
			return bad()
		}
		return e.w.WriteBytes(b)

	case schema.KindNumber:
		if f, ok := value.AsFloat64(v); ok {
			if i, isInt := value.AsInt64(v); isInt {
				return e.w.WriteString(strconv.FormatInt(i, 10))
			}
			return e.w.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
		b, ok := rawBytes(v)
		if !ok {
			return bad()
		}
		return e.w.WriteBytes(b)

	case schema.KindFixed:
		b, ok := rawBytes(v)
		if !ok {
			return bad()
		}
		out := make([]byte, n.Size)
		copy(out, b)
		e.w.WriteFixed(out)

	case schema.KindEnum:
		idx, err := enumOrdinal(n, v, path)
		if err != nil {
			return err
		}
		return e.w.WriteCount(idx)

	case schema.KindArray, schema.KindMap:
		if _, ok := v.(value.Array); !ok && n.Kind == schema.KindArray && !value.IsNull(v) {
			return bad()
		}
		if _, ok := v.(value.Object); !ok && n.Kind == schema.KindMap && !value.IsNull(v) {
			return bad()
		}
		return e.w.WriteCount(0)

	case schema.KindJSON:
		return e.w.WriteBytes(nil)

	case schema.KindCounter:
		if value.IsNull(v) {
			return e.w.WriteCount(0)
		}
		if _, ok := value.AsFloat64(v); !ok {
			return bad()
		}
		if !value.IsZero(v) {
			return configErr(ErrCounterDefault, path, "counter default must be 0, got %s", describeValue(v))
		}
		return e.w.WriteCount(0)

	case schema.KindRecord:
		return e.record(n, v, path, depth)

	case schema.KindAny:
		return configErr(ErrWildcardType, path, "type any cannot be resolved")

	default:
		return configErr(ErrInvalidSchema, path, "unknown schema kind %s", n.Kind)
	}
	return nil
}

// record encodes each sub-field in declared order, taking values from the
// enclosing Record or Object and falling back to sub-field defaults.
func (e *defaultEncoder) record(n *schema.Node, v value.Value, path string, depth int) error {
	if depth >= maxDefaultDepth {
		return configErr(ErrMissingDefault, path, "default for recursive %s does not terminate", schema.Describe(n))
	}
	switch v.(type) {
	case value.Record, value.Object, value.Null, nil:
	default:
		return configErr(ErrDefaultMismatch, path, "default %s does not fit %s", describeValue(v), schema.Describe(n))
	}

	for _, sf := range n.Fields {
		sub := path + "." + sf.Name
		if sv, ok := value.Lookup(v, sf.Name); ok {
			if err := e.field(sf, sv, true, sub, depth+1); err != nil {
				return err
			}
			continue
		}
		if err := e.field(sf, sf.Default, sf.HasDefault, sub, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func enumOrdinal(n *schema.Node, v value.Value, path string) (int, error) {
	switch ev := v.(type) {
	case value.String:
		if idx := n.SymbolIndex(string(ev)); idx >= 0 {
			return idx, nil
		}
		return 0, configErr(ErrUnknownSymbol, path, "%q is not a symbol of %s", string(ev), schema.Describe(n))
	case value.Enum:
		if ev.Symbol != "" {
			return enumOrdinal(n, value.String(ev.Symbol), path)
		}
		if ev.Index >= 0 && ev.Index < len(n.Symbols) {
			return ev.Index, nil
		}
		return 0, configErr(ErrUnknownSymbol, path, "ordinal %d out of range for %s", ev.Index, schema.Describe(n))
	}
	return 0, configErr(ErrDefaultMismatch, path, "default %s does not fit %s", describeValue(v), schema.Describe(n))
}

func rawBytes(v value.Value) ([]byte, bool) {
	switch b := v.(type) {
	case value.Bytes:
		return b, true
	case value.String:
		return []byte(b), true
	}
	return nil, false
}

func describeValue(v value.Value) string {
	switch v.(type) {
	case nil, value.Null:
		return "null"
	case value.Bool:
		return "boolean"
	case value.Int:
		return "int"
	case value.Long:
		return "long"
	case value.Float:
		return "float"
	case value.Double:
		return "double"
	case value.String:
		return "string"
	case value.Bytes:
		return "bytes"
	case value.Array:
		return "array"
	case value.Object, value.Record:
		return "object"
	case value.Enum:
		return "enum"
	}
	return "value"
}
