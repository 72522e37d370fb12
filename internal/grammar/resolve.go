package grammar

import (
	"fmt"

	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/symbol"
)

// promotions lists the writer kinds each reader kind accepts by widening.
var promotions = map[schema.Kind][]schema.Kind{
	schema.KindLong:   {schema.KindInt},
	schema.KindFloat:  {schema.KindInt, schema.KindLong},
	schema.KindDouble: {schema.KindInt, schema.KindLong, schema.KindFloat},
}

var numericTerminals = map[schema.Kind]symbol.Terminal{
	schema.KindInt:    symbol.Int,
	schema.KindLong:   symbol.Long,
	schema.KindFloat:  symbol.Float,
	schema.KindDouble: symbol.Double,
}

// CanPromote reports whether a writer kind widens to a reader kind.
func CanPromote(writer, reader schema.Kind) bool {
	for _, k := range promotions[reader] {
		if k == writer {
			return true
		}
	}
	return false
}

func mismatch(writer, reader *schema.Node) *symbol.Error {
	return symbol.NewError("Found %s, expecting %s", schema.Describe(writer), schema.Describe(reader))
}

// resolve builds the grammar reading writer-encoded data as reader.
func (g *generator) resolve(writer, reader *schema.Node) (symbol.Symbol, error) {
	if writer == nil || reader == nil {
		return nil, configErr(ErrInvalidSchema, "", "schema node is nil")
	}
	if writer.Kind == schema.KindAny || reader.Kind == schema.KindAny {
		return nil, configErr(ErrWildcardType, "", "type any cannot be resolved")
	}

	if writer.Kind != reader.Kind {
		if CanPromote(writer.Kind, reader.Kind) {
			base, err := g.generate(writer)
			if err != nil {
				return nil, err
			}
			return &symbol.Resolve{Base: base, Target: numericTerminals[reader.Kind]}, nil
		}
		return mismatch(writer, reader), nil
	}

	switch writer.Kind {
	case schema.KindBoolean, schema.KindInt, schema.KindLong, schema.KindFloat,
		schema.KindDouble, schema.KindString:
		// The writer decides the encoding, including a UUID string's.
		return g.generate(writer)

	case schema.KindBytes, schema.KindTimestamp, schema.KindNumber, schema.KindJSON:
		return symbol.Bytes, nil

	case schema.KindFixed:
		if writer.Size != reader.Size || writer.Name != reader.Name {
			return mismatch(writer, reader), nil
		}
		return g.generate(writer)

	case schema.KindEnum:
		if writer.Name != "" && writer.Name != reader.Name {
			return mismatch(writer, reader), nil
		}
		return symbol.NewSeq(enumAdjust(writer, reader), symbol.Enum), nil

	case schema.KindArray:
		elem, err := g.resolve(writer.Elem, reader.Elem)
		if err != nil {
			return nil, fmt.Errorf("array element: %w", err)
		}
		return arrayOf(elem), nil

	case schema.KindMap:
		elem, err := g.resolve(writer.Elem, reader.Elem)
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		return mapOf(elem), nil

	case schema.KindCounter:
		elem, err := g.resolve(writer.Elem, reader.Elem)
		if err != nil {
			return nil, fmt.Errorf("counter element: %w", err)
		}
		return counterOf(elem), nil

	case schema.KindRecord:
		return g.resolveRecords(writer, reader)
	}
	return nil, configErr(ErrInvalidSchema, "", "unknown schema kind %s", writer.Kind)
}

// enumAdjust maps each writer symbol to its reader ordinal, or NoMatch.
func enumAdjust(writer, reader *schema.Node) *symbol.EnumAdjust {
	mapping := make([]int, len(writer.Symbols))
	for i, s := range writer.Symbols {
		mapping[i] = reader.SymbolIndex(s)
	}
	return &symbol.EnumAdjust{
		Cardinality: len(reader.Symbols),
		Mapping:     mapping,
		Symbols:     reader.Symbols,
	}
}

// resolveRecords builds the grammar for a pair of records.
//
// Slots are filled from the end: FieldOrder last (it runs first), then one
// slot per writer field in writer order, then a DefaultStart/grammar/
// DefaultEnd triple per reader-only field.
func (g *generator) resolveRecords(writer, reader *schema.Node) (symbol.Symbol, error) {
	if s, ok := g.cache.lookupPair(writer, reader); ok {
		return s, nil
	}

	var (
		order      []string
		readerOnly []*schema.Field
	)
	for _, wf := range writer.Fields {
		if rf, _ := reader.Field(wf.Name); rf != nil {
			order = append(order, rf.Name)
		}
	}
	for _, rf := range reader.Fields {
		if wf, _ := writer.Field(rf.Name); wf != nil {
			continue
		}
		// A null default on a required field supplies nothing to read.
		if !rf.Nullable && rf.DefaultIsNull() {
			e := symbol.NewError("Found %s, expecting %s, missing required field %s",
				schema.Describe(writer), schema.Describe(reader), rf.Name)
			g.cache.storePair(writer, reader, e)
			g.logger.Debug().
				Str("writer", schema.Describe(writer)).
				Str("reader", schema.Describe(reader)).
				Str("field", rf.Name).
				Msg("deferred missing required field")
			return e, nil
		}
		readerOnly = append(readerOnly, rf)
		order = append(order, rf.Name)
	}

	p := symbol.Placeholder(1 + len(writer.Fields) + 3*len(readerOnly))
	g.cache.storePair(writer, reader, p)

	i := p.Len() - 1
	p.Set(i, &symbol.FieldOrder{Fields: order})
	i--

	skipped := 0
	for _, wf := range writer.Fields {
		rf, _ := reader.Field(wf.Name)
		if rf == nil {
			base, err := g.generateNullable(wf)
			if err != nil {
				return nil, fmt.Errorf("%s field %s: %w", schema.Describe(writer), wf.Name, err)
			}
			p.Set(i, &symbol.Skip{Inner: base})
			skipped++
		} else {
			s, err := g.resolveField(wf, rf)
			if err != nil {
				return nil, fmt.Errorf("%s field %s: %w", schema.Describe(reader), rf.Name, err)
			}
			p.Set(i, s)
		}
		i--
	}

	for _, rf := range readerOnly {
		def, err := EncodeDefault(rf)
		if err != nil {
			return nil, fmt.Errorf("%s field %s: %w", schema.Describe(reader), rf.Name, err)
		}
		s, err := g.resolveField(rf, rf)
		if err != nil {
			return nil, fmt.Errorf("%s field %s: %w", schema.Describe(reader), rf.Name, err)
		}
		p.Set(i, &symbol.DefaultStart{Bytes: def})
		p.Set(i-1, s)
		p.Set(i-2, &symbol.DefaultEnd{})
		i -= 3
	}

	g.logger.Debug().
		Str("writer", schema.Describe(writer)).
		Str("reader", schema.Describe(reader)).
		Strs("order", order).
		Int("skipped", skipped).
		Int("defaulted", len(readerOnly)).
		Msg("resolved record")
	return p, nil
}

// resolveField reconciles the nullability of a writer and reader field.
func (g *generator) resolveField(wf, rf *schema.Field) (symbol.Symbol, error) {
	switch {
	case wf.Nullable:
		return g.resolveUnion(wf, rf)
	case rf.Nullable:
		if !bestBranch(rf.Type, wf.Type) {
			return mismatch(wf.Type, rf.Type), nil
		}
		inner, err := g.resolve(wf.Type, rf.Type)
		if err != nil {
			return nil, err
		}
		return &symbol.UnionAdjust{Branch: rf.ValueIndex(), Inner: inner}, nil
	default:
		return g.resolve(wf.Type, rf.Type)
	}
}

// resolveUnion handles a nullable writer field. The Alt is indexed by the
// writer's branch placement; each branch adjusts to the reader's.
func (g *generator) resolveUnion(wf, rf *schema.Field) (symbol.Symbol, error) {
	branches := make([]symbol.Symbol, 2)
	labels := make([]string, 2)
	nullAt, valueAt := wf.NullIndex(), wf.ValueIndex()
	labels[nullAt], labels[valueAt] = "null", wf.Name

	if rf.Nullable {
		branches[nullAt] = &symbol.UnionAdjust{Branch: rf.NullIndex(), Inner: symbol.Null}
	} else {
		branches[nullAt] = symbol.NewError("Found null, expecting %s", schema.Describe(rf.Type))
	}

	switch {
	case !rf.Nullable:
		inner, err := g.resolve(wf.Type, rf.Type)
		if err != nil {
			return nil, err
		}
		branches[valueAt] = inner
	case bestBranch(rf.Type, wf.Type):
		inner, err := g.resolve(wf.Type, rf.Type)
		if err != nil {
			return nil, err
		}
		branches[valueAt] = &symbol.UnionAdjust{Branch: rf.ValueIndex(), Inner: inner}
	default:
		branches[valueAt] = mismatch(wf.Type, rf.Type)
	}

	return symbol.NewSeq(symbol.NewAlt(branches, labels), &symbol.WriterUnionTag{}), nil
}

// bestBranch reports whether a writer type can fill the value branch of a
// nullable reader field. Kinds must match and named kinds must share a
// name. Two anonymous types share the empty name, so they always match
// whatever their structure.
func bestBranch(reader, writer *schema.Node) bool {
	if reader == nil || writer == nil || reader.Kind != writer.Kind {
		return false
	}
	if reader.Kind.IsNamed() {
		return writer.Name == reader.Name
	}
	return true
}

// findWildcard returns the path of the first any type reachable from n.
func findWildcard(n *schema.Node) (string, bool) {
	seen := make(map[*schema.Node]bool)
	var walk func(n *schema.Node, path string) (string, bool)
	walk = func(n *schema.Node, path string) (string, bool) {
		if n == nil || seen[n] {
			return "", false
		}
		seen[n] = true
		switch n.Kind {
		case schema.KindAny:
			return path, true
		case schema.KindArray, schema.KindMap, schema.KindCounter:
			return walk(n.Elem, path+"[]")
		case schema.KindRecord:
			for _, f := range n.Fields {
				p := f.Name
				if path != "" {
					p = path + "." + f.Name
				}
				if found, ok := walk(f.Type, p); ok {
					return found, true
				}
			}
		}
		return "", false
	}
	return walk(n, "")
}
