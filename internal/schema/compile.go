package schema

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/evolve/internal/value"
)

// primitives maps source type names to node constructors.
var primitives = map[string]func() *Node{
	"boolean":   func() *Node { return New(KindBoolean) },
	"int":       func() *Node { return New(KindInt) },
	"long":      func() *Node { return New(KindLong) },
	"float":     func() *Node { return New(KindFloat) },
	"double":    func() *Node { return New(KindDouble) },
	"string":    func() *Node { return New(KindString) },
	"uuid":      NewUUID,
	"bytes":     func() *Node { return New(KindBytes) },
	"timestamp": func() *Node { return New(KindTimestamp) },
	"number":    func() *Node { return New(KindNumber) },
	"json":      func() *Node { return New(KindJSON) },
	"any":       func() *Node { return New(KindAny) },
}

// IsPrimitive reports whether name is a built-in type name.
func IsPrimitive(name string) bool {
	_, ok := primitives[name]
	return ok
}

// CompileSource compiles CUE source text into a Package.
func CompileSource(filename string, src []byte) (*Package, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(filename))
	return Compile(v)
}

// CompileFile reads and compiles a single CUE file.
func CompileFile(path string) (*Package, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	return CompileSource(path, src)
}

// Compile parses the record, enum and fixed declarations of a CUE value.
//
// Named types are declared before any of them is filled in, so records
// may refer to each other (and themselves) in any order. The resulting
// nodes form a graph that is cyclic exactly when the source is recursive.
func Compile(v cue.Value) (*Package, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	c := &compiler{pkg: NewPackage(), pos: make(map[string]token.Pos)}

	for _, section := range []struct {
		label string
		kind  Kind
	}{
		{"enum", KindEnum},
		{"fixed", KindFixed},
		{"record", KindRecord},
	} {
		if err := c.declare(v, section.label, section.kind); err != nil {
			return nil, err
		}
	}

	for _, name := range c.pkg.Names {
		if err := c.fill(name); err != nil {
			return nil, err
		}
	}
	return c.pkg, nil
}

type compiler struct {
	pkg  *Package
	decl map[string]cue.Value
	pos  map[string]token.Pos
}

// declare creates empty named nodes for every entry of a top-level section.
func (c *compiler) declare(v cue.Value, label string, kind Kind) error {
	section := v.LookupPath(cue.ParsePath(label))
	if !section.Exists() {
		return nil
	}
	iter, err := section.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	if c.decl == nil {
		c.decl = make(map[string]cue.Value)
	}
	for iter.Next() {
		name := iter.Label()
		if IsPrimitive(name) {
			return &CompileError{
				Field:   label + "." + name,
				Message: fmt.Sprintf("type name %q shadows a built-in type", name),
				Pos:     iter.Value().Pos(),
			}
		}
		if _, exists := c.pkg.Types[name]; exists {
			return &CompileError{
				Field:   label + "." + name,
				Message: fmt.Sprintf("type %q already declared at %s", name, c.pos[name]),
				Pos:     iter.Value().Pos(),
			}
		}
		c.pkg.Add(name, &Node{Kind: kind, Name: name})
		c.decl[name] = iter.Value()
		c.pos[name] = iter.Value().Pos()
	}
	return nil
}

func (c *compiler) fill(name string) error {
	n := c.pkg.Types[name]
	v := c.decl[name]

	switch n.Kind {
	case KindEnum:
		symbols, err := parseSymbols(v.LookupPath(cue.ParsePath("values")), "enum."+name+".values")
		if err != nil {
			return err
		}
		n.Symbols = symbols
	case KindFixed:
		size, err := parseSize(v.LookupPath(cue.ParsePath("size")), "fixed."+name+".size")
		if err != nil {
			return err
		}
		n.Size = size
	case KindRecord:
		fields, err := c.parseFields(v.LookupPath(cue.ParsePath("fields")), "record."+name)
		if err != nil {
			return err
		}
		n.Fields = fields
	}
	return nil
}

func (c *compiler) parseFields(v cue.Value, path string) ([]*Field, error) {
	if !v.Exists() {
		return nil, nil
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var fields []*Field
	for i := 0; iter.Next(); i++ {
		fv := iter.Value()
		f, err := c.parseField(fv, fmt.Sprintf("%s.fields[%d]", path, i))
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func (c *compiler) parseField(v cue.Value, path string) (*Field, error) {
	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{Field: path, Message: "field name is required", Pos: v.Pos()}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	path = path + "(" + name + ")"

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, &CompileError{Field: path, Message: "field type is required", Pos: v.Pos()}
	}
	t, err := c.parseType(typeVal, path+".type")
	if err != nil {
		return nil, err
	}

	f := NewField(name, t)

	if nv := v.LookupPath(cue.ParsePath("nullable")); nv.Exists() {
		nullable, err := nv.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		f.Nullable = nullable
	}

	if dv := v.LookupPath(cue.ParsePath("default")); dv.Exists() {
		def, err := valueFromCUE(dv, path+".default")
		if err != nil {
			return nil, err
		}
		f.WithDefault(def)
	}
	return f, nil
}

// parseType resolves a type reference: a name or a container struct.
func (c *compiler) parseType(v cue.Value, path string) (*Node, error) {
	switch v.Kind() {
	case cue.StringKind:
		name, _ := v.String()
		if ctor, ok := primitives[name]; ok {
			return ctor(), nil
		}
		if n, ok := c.pkg.Types[name]; ok {
			return n, nil
		}
		return nil, &CompileError{Field: path, Message: fmt.Sprintf("unknown type %q", name), Pos: v.Pos()}

	case cue.StructKind:
		for _, wrapper := range []struct {
			label string
			build func(*Node) *Node
		}{
			{"array", NewArray},
			{"map", NewMap},
			{"counter", NewCounter},
		} {
			if inner := v.LookupPath(cue.ParsePath(wrapper.label)); inner.Exists() {
				elem, err := c.parseType(inner, path+"."+wrapper.label)
				if err != nil {
					return nil, err
				}
				return wrapper.build(elem), nil
			}
		}
		if rv := v.LookupPath(cue.ParsePath("record")); rv.Exists() {
			fields, err := c.parseFields(rv.LookupPath(cue.ParsePath("fields")), path+".record")
			if err != nil {
				return nil, err
			}
			return NewRecord("", fields...), nil
		}
		if ev := v.LookupPath(cue.ParsePath("enum")); ev.Exists() {
			symbols, err := parseSymbols(ev, path+".enum")
			if err != nil {
				return nil, err
			}
			return NewEnum("", symbols...), nil
		}
		if fv := v.LookupPath(cue.ParsePath("fixed")); fv.Exists() {
			size, err := parseSize(fv, path+".fixed")
			if err != nil {
				return nil, err
			}
			return NewFixed("", size), nil
		}
		return nil, &CompileError{
			Field:   path,
			Message: "type struct must have one of array, map, counter, record, enum, fixed",
			Pos:     v.Pos(),
		}

	default:
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		return nil, &CompileError{
			Field:   path,
			Message: fmt.Sprintf("type must be a name or a struct, got %s", v.Kind()),
			Pos:     v.Pos(),
		}
	}
}

func parseSymbols(v cue.Value, path string) ([]string, error) {
	if !v.Exists() {
		return nil, &CompileError{Field: path, Message: "enum values are required", Pos: v.Pos()}
	}
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var symbols []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		symbols = append(symbols, s)
	}
	return symbols, nil
}

func parseSize(v cue.Value, path string) (int, error) {
	if !v.Exists() {
		return 0, &CompileError{Field: path, Message: "fixed size is required", Pos: v.Pos()}
	}
	size, err := v.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	if size < 0 {
		return 0, &CompileError{Field: path, Message: fmt.Sprintf("fixed size must not be negative, got %d", size), Pos: v.Pos()}
	}
	return int(size), nil
}

// valueFromCUE converts a concrete CUE value into a Value.
// Integers become Longs and decimals Doubles; the default encoder narrows
// them to the declared type.
func valueFromCUE(v cue.Value, path string) (value.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return value.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Long(n), nil
	case cue.FloatKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Double(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.String(s), nil
	case cue.BytesKind:
		b, err := v.Bytes()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Bytes(b), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		var arr value.Array
		for i := 0; iter.Next(); i++ {
			elem, err := valueFromCUE(iter.Value(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		if arr == nil {
			arr = value.Array{}
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := value.Object{}
		for iter.Next() {
			elem, err := valueFromCUE(iter.Value(), path+"."+iter.Label())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	default:
		if err := v.Err(); err != nil {
			return nil, formatCUEError(err)
		}
		return nil, &CompileError{Field: path, Message: "default must be a concrete value", Pos: v.Pos()}
	}
}

// CompileError is a schema source error with its position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError turns the first CUE error into a CompileError when it
// carries a position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return &CompileError{Field: "cue", Message: first.Error()}
}
