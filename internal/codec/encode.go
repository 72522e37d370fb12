package codec

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/value"
	"github.com/roach88/evolve/internal/wire"
)

// EncodeError reports a value that does not fit the writer schema.
type EncodeError struct {
	Path    string
	Message string
}

func (e *EncodeError) Error() string {
	if e.Path == "" {
		return "encode: " + e.Message
	}
	return fmt.Sprintf("encode %s: %s", e.Path, e.Message)
}

// Encode writes v with schema n, producing the bytes Generate(n) reads.
//
// Records take their fields from a value.Record or value.Object; missing
// fields fall back to the field default, or null when nullable. Counters
// accept a single number (one shard) or an array of shard deltas.
func Encode(n *schema.Node, v value.Value) ([]byte, error) {
	w := wire.NewWriter()
	if err := encodeValue(w, n, v, "$"); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func encodeErr(path, format string, args ...any) *EncodeError {
	return &EncodeError{Path: path, Message: fmt.Sprintf(format, args...)}
}

func encodeValue(w *wire.Writer, n *schema.Node, v value.Value, path string) error {
	bad := func() error {
		return encodeErr(path, "%T does not fit %s", v, schema.Describe(n))
	}

	switch n.Kind {
	case schema.KindBoolean:
		b, ok := v.(value.Bool)
		if !ok {
			return bad()
		}
		w.WriteBool(bool(b))

	case schema.KindInt:
		i, ok := value.AsInt32(v)
		if !ok {
			return bad()
		}
		w.WriteInt(i)

	case schema.KindLong:
		l, ok := value.AsInt64(v)
		if !ok {
			return bad()
		}
		w.WriteLong(l)

	case schema.KindFloat:
		f, ok := value.AsFloat32(v)
		if !ok {
			return bad()
		}
		w.WriteFloat(f)

	case schema.KindDouble:
		f, ok := value.AsFloat64(v)
		if !ok {
			return bad()
		}
		w.WriteDouble(f)

	case schema.KindString:
		if n.UUID {
			return encodeUUID(w, v, path)
		}
		s, ok := v.(value.String)
		if !ok {
			return bad()
		}
		return w.WriteString(string(s))

	case schema.KindBytes, schema.KindTimestamp:
		switch b := v.(type) {
		case value.Bytes:
			return w.WriteBytes(b)
		case value.String:
			return w.WriteBytes([]byte(b))
		}
		return bad()

	case schema.KindNumber:
		if i, ok := value.AsInt64(v); ok {
			return w.WriteString(strconv.FormatInt(i, 10))
		}
		if f, ok := value.AsFloat64(v); ok {
			return w.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}
		if s, ok := v.(value.String); ok {
			if _, err := strconv.ParseFloat(string(s), 64); err != nil {
				return encodeErr(path, "%q is not a number", string(s))
			}
			return w.WriteString(string(s))
		}
		return bad()

	case schema.KindJSON:
		if b, ok := v.(value.Bytes); ok {
			return w.WriteBytes(b)
		}
		doc, err := value.MarshalCanonical(v)
		if err != nil {
			return encodeErr(path, "%v", err)
		}
		return w.WriteBytes(doc)

	case schema.KindFixed:
		var b []byte
		switch fv := v.(type) {
		case value.Bytes:
			b = fv
		case value.String:
			b = []byte(fv)
		default:
			return bad()
		}
		if len(b) != n.Size {
			return encodeErr(path, "fixed %s needs %d bytes, got %d", n.Name, n.Size, len(b))
		}
		w.WriteFixed(b)

	case schema.KindEnum:
		idx, err := enumIndex(n, v, path)
		if err != nil {
			return err
		}
		return w.WriteCount(idx)

	case schema.KindArray:
		arr, ok := v.(value.Array)
		if !ok {
			return bad()
		}
		if err := w.WriteCount(len(arr)); err != nil {
			return err
		}
		for i, elem := range arr {
			if err := encodeValue(w, n.Elem, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}

	case schema.KindMap:
		obj, ok := v.(value.Object)
		if !ok {
			return bad()
		}
		if err := w.WriteCount(len(obj)); err != nil {
			return err
		}
		for _, k := range obj.SortedKeys() {
			if err := w.WriteString(k); err != nil {
				return err
			}
			if err := encodeValue(w, n.Elem, obj[k], path+"."+k); err != nil {
				return err
			}
		}

	case schema.KindCounter:
		shards, ok := v.(value.Array)
		if !ok {
			if _, numeric := value.AsFloat64(v); !numeric {
				return bad()
			}
			shards = value.Array{v}
		}
		if err := w.WriteCount(len(shards)); err != nil {
			return err
		}
		for i, delta := range shards {
			if err := encodeValue(w, n.Elem, delta, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}

	case schema.KindRecord:
		return encodeRecord(w, n, v, path)

	case schema.KindAny:
		return encodeErr(path, "type any has no encoding")

	default:
		return encodeErr(path, "unknown schema kind %s", n.Kind)
	}
	return nil
}

func encodeRecord(w *wire.Writer, n *schema.Node, v value.Value, path string) error {
	switch v.(type) {
	case value.Record, value.Object:
	default:
		return encodeErr(path, "%T does not fit %s", v, schema.Describe(n))
	}

	for _, f := range n.Fields {
		sub := path + "." + f.Name
		fv, ok := value.Lookup(v, f.Name)
		if !ok {
			switch {
			case f.HasDefault:
				fv = f.Default
			case f.Nullable:
				fv = value.Null{}
			default:
				return encodeErr(sub, "required field is missing")
			}
		}

		if f.Nullable {
			if value.IsNull(fv) {
				if err := w.WriteCount(f.NullIndex()); err != nil {
					return err
				}
				continue
			}
			if err := w.WriteCount(f.ValueIndex()); err != nil {
				return err
			}
		} else if value.IsNull(fv) {
			return encodeErr(sub, "null for non-nullable field")
		}

		if err := encodeValue(w, f.Type, fv, sub); err != nil {
			return err
		}
	}
	return nil
}

func encodeUUID(w *wire.Writer, v value.Value, path string) error {
	switch u := v.(type) {
	case value.String:
		parsed, err := uuid.Parse(string(u))
		if err != nil {
			return encodeErr(path, "%q is not a UUID: %v", string(u), err)
		}
		return w.WriteBytes(parsed[:])
	case value.Bytes:
		if len(u) != 16 {
			return encodeErr(path, "UUID needs 16 bytes, got %d", len(u))
		}
		return w.WriteBytes(u)
	}
	return encodeErr(path, "%T is not a UUID", v)
}

func enumIndex(n *schema.Node, v value.Value, path string) (int, error) {
	switch ev := v.(type) {
	case value.String:
		if idx := n.SymbolIndex(string(ev)); idx >= 0 {
			return idx, nil
		}
		return 0, encodeErr(path, "%q is not a symbol of %s", string(ev), schema.Describe(n))
	case value.Enum:
		if ev.Symbol != "" {
			return enumIndex(n, value.String(ev.Symbol), path)
		}
		if ev.Index >= 0 && ev.Index < len(n.Symbols) {
			return ev.Index, nil
		}
		return 0, encodeErr(path, "ordinal %d out of range for %s", ev.Index, schema.Describe(n))
	}
	return 0, encodeErr(path, "%T does not fit %s", v, schema.Describe(n))
}
