package symbol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Dump renders a grammar as an indented tree in execution order.
//
// Each Seq is numbered on first visit (seq#N); reaching it again prints a
// back reference (^seq#N) instead of descending, so cyclic grammars dump
// finitely. The numbering depends only on the grammar's shape, which makes
// dumps suitable for golden files.
func Dump(s Symbol) string {
	d := &dumper{ids: make(map[*Seq]int)}
	d.dump(s, 0, "")
	return d.b.String()
}

type dumper struct {
	b   strings.Builder
	ids map[*Seq]int
}

func (d *dumper) line(depth int, prefix, format string, args ...any) {
	d.b.WriteString(strings.Repeat("  ", depth))
	d.b.WriteString(prefix)
	fmt.Fprintf(&d.b, format, args...)
	d.b.WriteByte('\n')
}

func (d *dumper) dump(s Symbol, depth int, prefix string) {
	switch sym := s.(type) {
	case nil:
		d.line(depth, prefix, "<unset>")
	case Terminal:
		d.line(depth, prefix, "%s", sym)
	case *Seq:
		if id, seen := d.ids[sym]; seen {
			d.line(depth, prefix, "^seq#%d", id)
			return
		}
		id := len(d.ids)
		d.ids[sym] = id
		d.line(depth, prefix, "seq#%d", id)
		for _, child := range sym.Execution() {
			d.dump(child, depth+1, "")
		}
	case *Alt:
		d.line(depth, prefix, "alt")
		for i, branch := range sym.Branches {
			label := ""
			if i < len(sym.Labels) {
				label = sym.Labels[i]
			}
			d.dump(branch, depth+1, fmt.Sprintf("[%d %s] ", i, label))
		}
	case *Repeat:
		if sym.Count != nil {
			d.line(depth, prefix, "repeat until %s, count:", sym.End)
			d.dump(sym.Count, depth+2, "")
			d.line(depth+1, "", "body:")
			d.dump(sym.Body, depth+2, "")
			return
		}
		d.line(depth, prefix, "repeat until %s", sym.End)
		d.dump(sym.Body, depth+1, "")
	case *Resolve:
		if base, ok := sym.Base.(Terminal); ok {
			d.line(depth, prefix, "resolve %s -> %s", base, sym.Target)
			return
		}
		d.line(depth, prefix, "resolve -> %s", sym.Target)
		d.dump(sym.Base, depth+1, "")
	case *IntCheck:
		d.line(depth, prefix, "int-check %d", sym.Expected)
	case *EnumAdjust:
		d.line(depth, prefix, "enum-adjust %d %v", sym.Cardinality, sym.Mapping)
	case *UnionAdjust:
		d.line(depth, prefix, "union-adjust %d", sym.Branch)
		d.dump(sym.Inner, depth+1, "")
	case *FieldOrder:
		d.line(depth, prefix, "field-order [%s]", strings.Join(sym.Fields, " "))
	case *Skip:
		d.line(depth, prefix, "skip")
		d.dump(sym.Inner, depth+1, "")
	case *DefaultStart:
		d.line(depth, prefix, "default-start %s", hex.EncodeToString(sym.Bytes))
	case *DefaultEnd:
		d.line(depth, prefix, "default-end")
	case *WriterUnionTag:
		d.line(depth, prefix, "writer-union-tag")
	case *Error:
		d.line(depth, prefix, "error %q", sym.Message)
	default:
		d.line(depth, prefix, "%T", s)
	}
}
