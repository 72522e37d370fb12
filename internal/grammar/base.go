package grammar

import (
	"fmt"

	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/symbol"
)

// generate builds the base grammar for n. It dispatches on kind only.
func (g *generator) generate(n *schema.Node) (symbol.Symbol, error) {
	if n == nil {
		return nil, configErr(ErrInvalidSchema, "", "schema node is nil")
	}

	switch n.Kind {
	case schema.KindBoolean:
		return symbol.Boolean, nil
	case schema.KindInt:
		return symbol.Int, nil
	case schema.KindLong:
		return symbol.Long, nil
	case schema.KindFloat:
		return symbol.Float, nil
	case schema.KindDouble:
		return symbol.Double, nil
	case schema.KindString:
		if n.UUID {
			return symbol.Bytes, nil
		}
		return symbol.String, nil
	case schema.KindBytes, schema.KindTimestamp, schema.KindNumber, schema.KindJSON:
		return symbol.Bytes, nil

	case schema.KindFixed:
		return symbol.NewSeq(&symbol.IntCheck{Expected: n.Size}, symbol.Fixed), nil
	case schema.KindEnum:
		return symbol.NewSeq(&symbol.IntCheck{Expected: len(n.Symbols)}, symbol.Enum), nil

	case schema.KindArray:
		elem, err := g.generate(n.Elem)
		if err != nil {
			return nil, fmt.Errorf("array element: %w", err)
		}
		return arrayOf(elem), nil
	case schema.KindMap:
		elem, err := g.generate(n.Elem)
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		return mapOf(elem), nil
	case schema.KindCounter:
		elem, err := g.generate(n.Elem)
		if err != nil {
			return nil, fmt.Errorf("counter element: %w", err)
		}
		return counterOf(elem), nil

	case schema.KindRecord:
		return g.generateRecord(n)

	case schema.KindAny:
		return nil, configErr(ErrWildcardType, "", "type any cannot be resolved")
	}
	return nil, configErr(ErrInvalidSchema, "", "unknown schema kind %s", n.Kind)
}

func (g *generator) generateRecord(n *schema.Node) (symbol.Symbol, error) {
	if s, ok := g.cache.lookupBase(n); ok {
		return s, nil
	}

	p := symbol.Placeholder(len(n.Fields))
	g.cache.storeBase(n, p)

	last := p.Len() - 1
	for i, f := range n.Fields {
		s, err := g.generateNullable(f)
		if err != nil {
			return nil, fmt.Errorf("%s field %s: %w", schema.Describe(n), f.Name, err)
		}
		p.Set(last-i, s)
	}
	return p, nil
}

// generateNullable wraps a nullable field's grammar in a two-branch union
// whose null branch sits where the field's default puts it.
func (g *generator) generateNullable(f *schema.Field) (symbol.Symbol, error) {
	inner, err := g.generate(f.Type)
	if err != nil {
		return nil, err
	}
	if !f.Nullable {
		return inner, nil
	}

	branches := make([]symbol.Symbol, 2)
	labels := make([]string, 2)
	branches[f.NullIndex()], labels[f.NullIndex()] = symbol.Null, "null"
	branches[f.ValueIndex()], labels[f.ValueIndex()] = inner, f.Name
	return symbol.NewSeq(symbol.NewAlt(branches, labels), symbol.Union), nil
}

func arrayOf(elem symbol.Symbol) *symbol.Seq {
	return symbol.NewSeq(&symbol.Repeat{End: symbol.ArrayEnd, Body: elem}, symbol.ArrayStart)
}

func mapOf(elem symbol.Symbol) *symbol.Seq {
	body := symbol.NewSeq(elem, symbol.String)
	return symbol.NewSeq(&symbol.Repeat{End: symbol.MapEnd, Body: body}, symbol.MapStart)
}

func counterOf(elem symbol.Symbol) *symbol.Seq {
	return symbol.NewSeq(&symbol.Repeat{End: symbol.CrdtEnd, Body: elem, Count: symbol.Int}, symbol.CrdtStart)
}
