// Package codec encodes values with a writer schema and decodes them by
// interpreting a grammar.
//
// The decoder is a reference interpreter: it walks a grammar exactly as a
// streaming parser would, one terminal per wire read, and materializes the
// result as a value.Value. Records decoded through a resolving grammar
// come back as value.Record with fields in arrival order (writer order,
// then reader-only fields).
package codec

import (
	"fmt"

	"github.com/roach88/evolve/internal/symbol"
	"github.com/roach88/evolve/internal/value"
	"github.com/roach88/evolve/internal/wire"
)

// maxDepth bounds grammar nesting during a decode. Only a grammar for a
// record that contains itself unconditionally can reach it.
const maxDepth = 10000

// DecodeError reports a failure at a position in the input.
type DecodeError struct {
	Offset  int
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode at offset %d: %s", e.Offset, e.Message)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Read is one primitive read observed during a decode.
type Read struct {
	Kind    string `json:"kind"`
	Offset  int    `json:"offset"`
	Len     int    `json:"len"`
	Default bool   `json:"default,omitempty"` // read from an embedded default
}

// Trace records the reads of a decode.
type Trace struct {
	Reads []Read
}

// Input returns the reads taken from the input, leaving out embedded
// defaults.
func (t *Trace) Input() []Read {
	var out []Read
	for _, r := range t.Reads {
		if !r.Default {
			out = append(out, r)
		}
	}
	return out
}

// Option configures a decode.
type Option func(*decoder)

// WithTrace records every wire read into t.
func WithTrace(t *Trace) Option {
	return func(d *decoder) {
		d.trace = t
	}
}

// Decode runs grammar g over data and returns the decoded value. All
// input must be consumed.
func Decode(g symbol.Symbol, data []byte, opts ...Option) (value.Value, error) {
	d := &decoder{}
	for _, opt := range opts {
		opt(d)
	}
	d.push(data, false)

	vals, err := d.exec(g)
	if err != nil {
		return nil, err
	}
	if len(d.readers) != 1 {
		return nil, d.fail("unbalanced default markers")
	}
	if rest := d.r().Remaining(); rest > 0 {
		return nil, d.fail(fmt.Sprintf("%d trailing bytes", rest))
	}

	switch len(vals) {
	case 0:
		return value.Null{}, nil
	case 1:
		return vals[0], nil
	default:
		return value.Array(vals), nil
	}
}

type decoder struct {
	readers []*wire.Reader
	trace   *Trace
	depth   int
}

func (d *decoder) r() *wire.Reader {
	return d.readers[len(d.readers)-1]
}

func (d *decoder) push(data []byte, isDefault bool) {
	r := wire.NewReader(data)
	if d.trace != nil {
		r.OnRead = func(kind string, offset, n int) {
			d.trace.Reads = append(d.trace.Reads, Read{Kind: kind, Offset: offset, Len: n, Default: isDefault})
		}
	}
	d.readers = append(d.readers, r)
}

func (d *decoder) fail(msg string) *DecodeError {
	return &DecodeError{Offset: d.r().Offset(), Message: msg}
}

func (d *decoder) wrap(err error) error {
	if _, ok := err.(*DecodeError); ok {
		return err
	}
	return &DecodeError{Offset: d.r().Offset(), Message: err.Error(), Err: err}
}

// exec runs one symbol and returns the values it produced.
func (d *decoder) exec(s symbol.Symbol) ([]value.Value, error) {
	d.depth++
	defer func() { d.depth-- }()
	if d.depth > maxDepth {
		return nil, d.fail("grammar nests too deeply")
	}

	switch sym := s.(type) {
	case nil:
		return nil, d.fail("grammar has an unset slot")

	case symbol.Terminal:
		return d.terminal(sym)

	case *symbol.Seq:
		return d.seq(sym)

	case *symbol.Resolve:
		vals, err := d.exec(sym.Base)
		if err != nil {
			return nil, err
		}
		for i, v := range vals {
			widened, err := widen(v, sym.Target)
			if err != nil {
				return nil, d.wrap(err)
			}
			vals[i] = widened
		}
		return vals, nil

	case *symbol.UnionAdjust:
		return d.exec(sym.Inner)

	case *symbol.Skip:
		_, err := d.exec(sym.Inner)
		return nil, err

	case *symbol.Error:
		return nil, &DecodeError{Offset: d.r().Offset(), Message: sym.Message, Err: sym}

	case *symbol.DefaultStart:
		d.push(sym.Bytes, true)
		return nil, nil

	case *symbol.DefaultEnd:
		if len(d.readers) < 2 {
			return nil, d.fail("default end without start")
		}
		if rest := d.r().Remaining(); rest > 0 {
			return nil, d.fail(fmt.Sprintf("default has %d unread bytes", rest))
		}
		d.readers = d.readers[:len(d.readers)-1]
		return nil, nil

	case *symbol.IntCheck, *symbol.EnumAdjust, *symbol.FieldOrder:
		// Consumed by the sequence that owns them.
		return nil, nil

	case *symbol.Alt:
		return nil, d.fail("alternative without a union tag")
	case *symbol.Repeat:
		return nil, d.fail("repeat without a start marker")
	case *symbol.WriterUnionTag:
		return nil, d.fail("union tag without an alternative")
	}
	return nil, d.fail(fmt.Sprintf("unsupported symbol %T", s))
}

func (d *decoder) terminal(t symbol.Terminal) ([]value.Value, error) {
	r := d.r()
	var (
		v   value.Value
		err error
	)
	switch t {
	case symbol.Boolean:
		var b bool
		b, err = r.ReadBool()
		v = value.Bool(b)
	case symbol.Int:
		var n int32
		n, err = r.ReadInt()
		v = value.Int(n)
	case symbol.Long:
		var n int64
		n, err = r.ReadLong()
		v = value.Long(n)
	case symbol.Float:
		var f float32
		f, err = r.ReadFloat()
		v = value.Float(f)
	case symbol.Double:
		var f float64
		f, err = r.ReadDouble()
		v = value.Double(f)
	case symbol.String:
		var s string
		s, err = r.ReadString()
		v = value.String(s)
	case symbol.Bytes:
		var b []byte
		b, err = r.ReadBytes()
		v = value.Bytes(append([]byte(nil), b...))
	case symbol.Enum:
		var n int
		n, err = r.ReadCount()
		v = value.Enum{Index: n}
	case symbol.Null:
		v = value.Null{}
	case symbol.ArrayEnd, symbol.MapEnd, symbol.CrdtEnd:
		return nil, nil
	default:
		return nil, d.fail(fmt.Sprintf("%s outside its sequence", t))
	}
	if err != nil {
		return nil, d.wrap(err)
	}
	return []value.Value{v}, nil
}

// seq runs children in execution order. Terminals that need context (a
// fixed size, an enum mapping, a union branch, a repeat body) take it from
// the child that runs right after them.
func (d *decoder) seq(s *symbol.Seq) ([]value.Value, error) {
	children := s.Execution()
	if len(children) > 0 {
		if order, ok := children[0].(*symbol.FieldOrder); ok {
			v, err := d.record(order, children[1:])
			if err != nil {
				return nil, err
			}
			return []value.Value{v}, nil
		}
	}

	var out []value.Value
	for i := 0; i < len(children); i++ {
		var next symbol.Symbol
		if i+1 < len(children) {
			next = children[i+1]
		}
		vals, usedNext, err := d.step(children[i], next)
		if err != nil {
			return nil, err
		}
		if usedNext {
			i++
		}
		out = append(out, vals...)
	}
	return out, nil
}

func (d *decoder) step(s, next symbol.Symbol) ([]value.Value, bool, error) {
	switch s {
	case symbol.Fixed:
		check, ok := next.(*symbol.IntCheck)
		if !ok {
			return nil, false, d.fail("fixed without a size")
		}
		b, err := d.r().ReadFixed(check.Expected)
		if err != nil {
			return nil, false, d.wrap(err)
		}
		return []value.Value{value.Bytes(append([]byte(nil), b...))}, true, nil

	case symbol.Enum:
		v, used, err := d.enum(next)
		if err != nil {
			return nil, false, err
		}
		return []value.Value{v}, used, nil

	case symbol.Union:
		return d.union(next)

	case symbol.ArrayStart, symbol.MapStart:
		rep, ok := next.(*symbol.Repeat)
		if !ok {
			return nil, false, d.fail(fmt.Sprintf("%s without a repeat", s))
		}
		n, err := d.r().ReadCount()
		if err != nil {
			return nil, false, d.wrap(err)
		}
		v, err := d.repeat(rep, n, s == symbol.MapStart)
		if err != nil {
			return nil, false, err
		}
		return []value.Value{v}, true, nil

	case symbol.CrdtStart:
		rep, ok := next.(*symbol.Repeat)
		if !ok || rep.Count == nil {
			return nil, false, d.fail("counter without a shard count")
		}
		v, err := d.counter(rep)
		if err != nil {
			return nil, false, err
		}
		return []value.Value{v}, true, nil
	}

	if _, ok := s.(*symbol.WriterUnionTag); ok {
		return d.union(next)
	}

	vals, err := d.exec(s)
	return vals, false, err
}

func (d *decoder) enum(next symbol.Symbol) (value.Value, bool, error) {
	start := d.r().Offset()
	n, err := d.r().ReadCount()
	if err != nil {
		return nil, false, d.wrap(err)
	}
	switch adj := next.(type) {
	case *symbol.IntCheck:
		if n >= adj.Expected {
			return nil, false, &DecodeError{Offset: start, Message: fmt.Sprintf("enum ordinal %d out of range [0,%d)", n, adj.Expected)}
		}
		return value.Enum{Index: n}, true, nil
	case *symbol.EnumAdjust:
		if n >= len(adj.Mapping) {
			return nil, false, &DecodeError{Offset: start, Message: fmt.Sprintf("enum ordinal %d out of range [0,%d)", n, len(adj.Mapping))}
		}
		idx := adj.Mapping[n]
		if idx == symbol.NoMatch {
			return nil, false, &DecodeError{Offset: start, Message: fmt.Sprintf("writer enum ordinal %d has no reader symbol", n)}
		}
		v := value.Enum{Index: idx}
		if idx < len(adj.Symbols) {
			v.Symbol = adj.Symbols[idx]
		}
		return v, true, nil
	}
	return value.Enum{Index: n}, false, nil
}

func (d *decoder) union(next symbol.Symbol) ([]value.Value, bool, error) {
	alt, ok := next.(*symbol.Alt)
	if !ok {
		return nil, false, d.fail("union tag without an alternative")
	}
	start := d.r().Offset()
	tag, err := d.r().ReadCount()
	if err != nil {
		return nil, false, d.wrap(err)
	}
	branch := alt.Branch(tag)
	if branch == nil {
		return nil, false, &DecodeError{Offset: start, Message: fmt.Sprintf("union tag %d out of range [0,%d)", tag, len(alt.Branches))}
	}
	vals, err := d.exec(branch)
	return vals, true, err
}

// repeat decodes n items of rep's body. n comes off the wire, so it only
// sizes allocations up to the bytes left to read.
func (d *decoder) repeat(rep *symbol.Repeat, n int, isMap bool) (value.Value, error) {
	hint := min(n, d.r().Remaining())
	if isMap {
		obj := make(value.Object, hint)
		for i := 0; i < n; i++ {
			vals, err := d.exec(rep.Body)
			if err != nil {
				return nil, err
			}
			if len(vals) != 2 {
				return nil, d.fail(fmt.Sprintf("map entry produced %d values", len(vals)))
			}
			key, ok := vals[0].(value.String)
			if !ok {
				return nil, d.fail("map key is not a string")
			}
			obj[string(key)] = vals[1]
		}
		return obj, nil
	}

	arr := make(value.Array, 0, hint)
	for i := 0; i < n; i++ {
		vals, err := d.exec(rep.Body)
		if err != nil {
			return nil, err
		}
		arr = append(arr, vals...)
	}
	return arr, nil
}

// counter reads the shard count and returns the sum of the shard deltas.
func (d *decoder) counter(rep *symbol.Repeat) (value.Value, error) {
	counts, err := d.exec(rep.Count)
	if err != nil {
		return nil, err
	}
	if len(counts) != 1 {
		return nil, d.fail("counter shard count missing")
	}
	n, ok := value.AsInt64(counts[0])
	if !ok || n < 0 {
		return nil, d.fail(fmt.Sprintf("invalid counter shard count %v", counts[0]))
	}

	sum := zeroOf(rep.Body)
	for i := int64(0); i < n; i++ {
		vals, err := d.exec(rep.Body)
		if err != nil {
			return nil, err
		}
		for _, v := range vals {
			if sum, err = add(sum, v); err != nil {
				return nil, d.wrap(err)
			}
		}
	}
	return sum, nil
}

func (d *decoder) record(order *symbol.FieldOrder, children []symbol.Symbol) (value.Value, error) {
	var vals []value.Value
	for i := 0; i < len(children); i++ {
		var next symbol.Symbol
		if i+1 < len(children) {
			next = children[i+1]
		}
		out, usedNext, err := d.step(children[i], next)
		if err != nil {
			return nil, err
		}
		if usedNext {
			i++
		}
		vals = append(vals, out...)
	}
	if len(vals) != len(order.Fields) {
		return nil, d.fail(fmt.Sprintf("record produced %d values for %d fields", len(vals), len(order.Fields)))
	}

	rec := value.Record{Fields: make([]value.Field, len(vals))}
	for i, v := range vals {
		rec.Fields[i] = value.F(order.Fields[i], v)
	}
	return rec, nil
}

func widen(v value.Value, target symbol.Terminal) (value.Value, error) {
	switch target {
	case symbol.Long:
		if n, ok := value.AsInt64(v); ok {
			return value.Long(n), nil
		}
	case symbol.Float:
		if f, ok := value.AsFloat32(v); ok {
			return value.Float(f), nil
		}
	case symbol.Double:
		if f, ok := value.AsFloat64(v); ok {
			return value.Double(f), nil
		}
	}
	return nil, fmt.Errorf("cannot promote %T to %s", v, target)
}

// zeroOf returns the zero value a counter body produces.
func zeroOf(body symbol.Symbol) value.Value {
	switch b := body.(type) {
	case symbol.Terminal:
		switch b {
		case symbol.Int:
			return value.Int(0)
		case symbol.Float:
			return value.Float(0)
		case symbol.Double:
			return value.Double(0)
		}
	case *symbol.Resolve:
		return zeroOf(b.Target)
	}
	return value.Long(0)
}

func add(a, b value.Value) (value.Value, error) {
	switch av := a.(type) {
	case value.Int:
		if bv, ok := b.(value.Int); ok {
			return av + bv, nil
		}
	case value.Long:
		if bv, ok := value.AsInt64(b); ok {
			return av + value.Long(bv), nil
		}
	case value.Float:
		if bv, ok := b.(value.Float); ok {
			return av + bv, nil
		}
	case value.Double:
		if bv, ok := value.AsFloat64(b); ok {
			return av + value.Double(bv), nil
		}
	}
	return nil, fmt.Errorf("cannot add %T to counter of %T", b, a)
}
