// Package symbol defines the grammar IR produced by the grammar compiler
// and consumed by decoders.
//
// A grammar is a graph of Symbols. Terminals name a wire read; sequences,
// alternatives and repeaters give the graph its shape; actions adjust what
// a decoder does with the values it reads. Recursive schemas produce cyclic
// graphs: a record's *Seq may be reachable from one of its own children.
//
// Children of a Seq are stored in production order. A decoder executes
// them from the last child to the first; Execution returns that order.
package symbol

import "fmt"

// Symbol is a sealed interface over grammar nodes.
type Symbol interface {
	symbol() // Sealed - only types in this package implement it
}

// Terminal is a leaf symbol that corresponds to one wire read (or to a
// structural marker that reads nothing).
type Terminal uint8

const (
	Boolean Terminal = iota + 1
	Int
	Long
	Float
	Double
	String
	Bytes
	Fixed
	Enum
	ArrayStart
	ArrayEnd
	MapStart
	MapEnd
	Union
	Null
	CrdtStart
	CrdtEnd
)

var terminalNames = map[Terminal]string{
	Boolean:    "boolean",
	Int:        "int",
	Long:       "long",
	Float:      "float",
	Double:     "double",
	String:     "string",
	Bytes:      "bytes",
	Fixed:      "fixed",
	Enum:       "enum",
	ArrayStart: "array-start",
	ArrayEnd:   "array-end",
	MapStart:   "map-start",
	MapEnd:     "map-end",
	Union:      "union",
	Null:       "null",
	CrdtStart:  "crdt-start",
	CrdtEnd:    "crdt-end",
}

func (Terminal) symbol() {}

func (t Terminal) String() string {
	if name, ok := terminalNames[t]; ok {
		return name
	}
	return fmt.Sprintf("terminal(%d)", uint8(t))
}

// Seq is an ordered production of child symbols.
type Seq struct {
	Children []Symbol
}

func (*Seq) symbol() {}

// NewSeq creates a sequence from children in production order.
func NewSeq(production ...Symbol) *Seq {
	return &Seq{Children: production}
}

// Placeholder creates a sequence of n empty slots to be filled with Set.
// Registering a placeholder before filling it is what lets recursive
// records refer to their own grammar.
func Placeholder(n int) *Seq {
	return &Seq{Children: make([]Symbol, n)}
}

// Set fills slot i.
func (s *Seq) Set(i int, child Symbol) {
	s.Children[i] = child
}

// Len returns the number of slots.
func (s *Seq) Len() int {
	return len(s.Children)
}

// Execution returns the children in the order a decoder runs them.
func (s *Seq) Execution() []Symbol {
	out := make([]Symbol, len(s.Children))
	for i, child := range s.Children {
		out[len(s.Children)-1-i] = child
	}
	return out
}

// Alt is a choice between branches, selected by a previously read tag.
// Labels run parallel to Branches.
type Alt struct {
	Branches []Symbol
	Labels   []string
}

func (*Alt) symbol() {}

// NewAlt creates an alternative. Labels must parallel branches.
func NewAlt(branches []Symbol, labels []string) *Alt {
	return &Alt{Branches: branches, Labels: labels}
}

// Branch returns branch i, or nil when i is out of range.
func (a *Alt) Branch(i int) Symbol {
	if i < 0 || i >= len(a.Branches) {
		return nil
	}
	return a.Branches[i]
}

// Repeat runs Body once per item and finishes at End. Count is the
// terminal that reads the item count when the repetition carries its own
// (counters); it is nil when the count comes from the start terminal.
type Repeat struct {
	End   Terminal
	Body  Symbol
	Count Symbol
}

func (*Repeat) symbol() {}

// NoMatch marks a writer enum symbol absent from the reader.
const NoMatch = -1

// Resolve reads with Base and converts the value to Target.
type Resolve struct {
	Base   Symbol
	Target Terminal
}

func (*Resolve) symbol() {}

// IntCheck carries the size of a fixed or the cardinality of an enum.
type IntCheck struct {
	Expected int
}

func (*IntCheck) symbol() {}

// EnumAdjust maps writer ordinals to reader ordinals.
// Mapping[i] is the reader index of writer symbol i, or NoMatch.
type EnumAdjust struct {
	Cardinality int
	Mapping     []int
	Symbols     []string // reader symbols
}

func (*EnumAdjust) symbol() {}

// UnionAdjust selects the reader union branch the inner grammar fills.
type UnionAdjust struct {
	Branch int
	Inner  Symbol
}

func (*UnionAdjust) symbol() {}

// FieldOrder lists reader field names in the order values arrive: fields
// shared with the writer in writer order, then reader-only fields.
type FieldOrder struct {
	Fields []string
}

func (*FieldOrder) symbol() {}

// Skip decodes its inner grammar and discards the result.
type Skip struct {
	Inner Symbol
}

func (*Skip) symbol() {}

// DefaultStart switches reads to an embedded default encoding until the
// matching DefaultEnd.
type DefaultStart struct {
	Bytes []byte
}

func (*DefaultStart) symbol() {}

// DefaultEnd switches reads back to the input.
type DefaultEnd struct{}

func (*DefaultEnd) symbol() {}

// WriterUnionTag reads the writer's union branch tag for the Alt that
// follows it.
type WriterUnionTag struct{}

func (*WriterUnionTag) symbol() {}

// Error is a deferred resolution failure: the grammar is valid, but
// decoding fails if this symbol is ever reached.
type Error struct {
	Message string
}

func (*Error) symbol() {}

func (e *Error) Error() string {
	return e.Message
}

// NewError creates a deferred error symbol.
func NewError(format string, args ...any) *Error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}
