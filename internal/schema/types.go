package schema

import (
	"fmt"

	"github.com/roach88/evolve/internal/value"
)

// Kind identifies the shape of a schema node.
type Kind uint8

const (
	KindBoolean Kind = iota
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindString
	KindBytes
	KindFixed
	KindEnum
	KindArray
	KindMap
	KindRecord
	KindTimestamp
	KindNumber
	KindJSON
	KindAny
	KindCounter
)

// Kinds lists every kind in declaration order.
var Kinds = []Kind{
	KindBoolean, KindInt, KindLong, KindFloat, KindDouble, KindString, KindBytes,
	KindFixed, KindEnum, KindArray, KindMap, KindRecord, KindTimestamp, KindNumber,
	KindJSON, KindAny, KindCounter,
}

var kindNames = map[Kind]string{
	KindBoolean:   "boolean",
	KindInt:       "int",
	KindLong:      "long",
	KindFloat:     "float",
	KindDouble:    "double",
	KindString:    "string",
	KindBytes:     "bytes",
	KindFixed:     "fixed",
	KindEnum:      "enum",
	KindArray:     "array",
	KindMap:       "map",
	KindRecord:    "record",
	KindTimestamp: "timestamp",
	KindNumber:    "number",
	KindJSON:      "json",
	KindAny:       "any",
	KindCounter:   "counter",
}

// String returns the kind name used in schema sources and error messages.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsNamed reports whether nodes of this kind carry a type name.
func (k Kind) IsNamed() bool {
	return k == KindRecord || k == KindEnum || k == KindFixed
}

// IsNumeric reports whether the kind is a number a counter can wrap.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt, KindLong, KindFloat, KindDouble:
		return true
	}
	return false
}

// Node is one schema type. Nodes are compared by pointer identity: two
// structurally equal nodes are still different schema objects.
type Node struct {
	Kind Kind

	// Name is set for Record, Enum and Fixed; empty when anonymous.
	Name string

	// Size is the byte length of a Fixed.
	Size int

	// Symbols are the values of an Enum in ordinal order.
	Symbols []string

	// Fields are the fields of a Record in declaration order.
	Fields []*Field

	// Elem is the element type of an Array, Map or Counter.
	Elem *Node

	// UUID marks a String encoded as raw bytes.
	UUID bool
}

// Field is one field of a record.
type Field struct {
	Name     string
	Type     *Node
	Nullable bool

	// HasDefault distinguishes "no default" from a Null default.
	HasDefault bool
	Default    value.Value
}

// New creates a node of the given kind with no payload.
func New(kind Kind) *Node {
	return &Node{Kind: kind}
}

// NewUUID creates a String node encoded as raw bytes.
func NewUUID() *Node {
	return &Node{Kind: KindString, UUID: true}
}

// NewFixed creates a fixed-size binary node.
func NewFixed(name string, size int) *Node {
	return &Node{Kind: KindFixed, Name: name, Size: size}
}

// NewEnum creates an enum node.
func NewEnum(name string, symbols ...string) *Node {
	return &Node{Kind: KindEnum, Name: name, Symbols: symbols}
}

// NewArray creates an array node.
func NewArray(elem *Node) *Node {
	return &Node{Kind: KindArray, Elem: elem}
}

// NewMap creates a map node with string keys.
func NewMap(elem *Node) *Node {
	return &Node{Kind: KindMap, Elem: elem}
}

// NewCounter creates a counter wrapping a numeric element.
func NewCounter(elem *Node) *Node {
	return &Node{Kind: KindCounter, Elem: elem}
}

// NewRecord creates a record node. Fields may be appended later, which is
// how self-referencing records are built.
func NewRecord(name string, fields ...*Field) *Node {
	return &Node{Kind: KindRecord, Name: name, Fields: fields}
}

// NewField creates a required field.
func NewField(name string, t *Node) *Field {
	return &Field{Name: name, Type: t}
}

// AsNullable marks the field nullable and returns it.
func (f *Field) AsNullable() *Field {
	f.Nullable = true
	return f
}

// WithDefault sets the field's default and returns it.
func (f *Field) WithDefault(v value.Value) *Field {
	f.HasDefault = true
	f.Default = v
	return f
}

// DefaultIsNull reports whether the field's default is null. A field
// without a default counts as null-defaulted.
func (f *Field) DefaultIsNull() bool {
	return !f.HasDefault || value.IsNull(f.Default)
}

// NullIndex is the union branch index of null for a nullable field:
// 0 when the default is null, 1 otherwise.
func (f *Field) NullIndex() int {
	if f.DefaultIsNull() {
		return 0
	}
	return 1
}

// ValueIndex is the union branch index of the non-null value.
func (f *Field) ValueIndex() int {
	return 1 - f.NullIndex()
}

// Field returns the named field and its position, or nil and -1.
func (n *Node) Field(name string) (*Field, int) {
	for i, f := range n.Fields {
		if f.Name == name {
			return f, i
		}
	}
	return nil, -1
}

// SymbolIndex returns the ordinal of an enum symbol, or -1.
func (n *Node) SymbolIndex(symbol string) int {
	for i, s := range n.Symbols {
		if s == symbol {
			return i
		}
	}
	return -1
}

// Describe renders the node for error messages, e.g. "long", "record User".
func Describe(n *Node) string {
	switch {
	case n == nil:
		return "null"
	case n.Kind == KindString && n.UUID:
		return "uuid"
	case n.Kind.IsNamed() && n.Name != "":
		return n.Kind.String() + " " + n.Name
	case n.Kind == KindCounter && n.Elem != nil:
		return "counter<" + Describe(n.Elem) + ">"
	default:
		return n.Kind.String()
	}
}

// Package is a set of named schema types compiled from one source.
type Package struct {
	Types map[string]*Node
	Names []string // declaration order
}

// NewPackage creates an empty package.
func NewPackage() *Package {
	return &Package{Types: make(map[string]*Node)}
}

// Add registers a named node.
func (p *Package) Add(name string, n *Node) {
	if _, exists := p.Types[name]; !exists {
		p.Names = append(p.Names, name)
	}
	p.Types[name] = n
}

// Lookup returns the named node.
func (p *Package) Lookup(name string) (*Node, bool) {
	n, ok := p.Types[name]
	return n, ok
}

// Records returns the record types in declaration order.
func (p *Package) Records() []*Node {
	var out []*Node
	for _, name := range p.Names {
		if n := p.Types[name]; n.Kind == KindRecord {
			out = append(out, n)
		}
	}
	return out
}
