package grammar

import (
	"github.com/rs/zerolog"

	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/symbol"
)

// Compiler builds grammars and logs resolution decisions at debug level.
// A Compiler holds no per-call state and is safe for concurrent use.
type Compiler struct {
	logger zerolog.Logger
}

// NewCompiler creates a compiler that logs to logger.
func NewCompiler(logger zerolog.Logger) *Compiler {
	return &Compiler{logger: logger}
}

// Generate builds the grammar that reads data written with n.
func (c *Compiler) Generate(n *schema.Node) (symbol.Symbol, error) {
	return c.newGenerator().generate(n)
}

// Resolve builds the grammar that reads data written with writer and
// produces values shaped by reader.
func (c *Compiler) Resolve(writer, reader *schema.Node) (symbol.Symbol, error) {
	for _, n := range []*schema.Node{writer, reader} {
		if path, ok := findWildcard(n); ok {
			return nil, configErr(ErrWildcardType, path, "type any cannot be resolved")
		}
	}
	g := c.newGenerator()
	s, err := g.resolve(writer, reader)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("writer", schema.Describe(writer)).
		Str("reader", schema.Describe(reader)).
		Int("records", len(g.cache.pairs)).
		Msg("grammar resolved")
	return s, nil
}

func (c *Compiler) newGenerator() *generator {
	return &generator{cache: newCache(), logger: c.logger}
}

var nop = NewCompiler(zerolog.Nop())

// Generate builds the grammar that reads data written with n.
func Generate(n *schema.Node) (symbol.Symbol, error) {
	return nop.Generate(n)
}

// Resolve builds the grammar that reads writer-encoded data as reader.
func Resolve(writer, reader *schema.Node) (symbol.Symbol, error) {
	return nop.Resolve(writer, reader)
}

// generator holds the state of one top-level call.
type generator struct {
	cache  *cache
	logger zerolog.Logger
}
