package grammar

import (
	"github.com/roach88/evolve/internal/schema"
	"github.com/roach88/evolve/internal/symbol"
)

// pair keys a resolution by the identity of both schemas. Order matters:
// (a, b) and (b, a) are different resolutions.
type pair struct {
	writer *schema.Node
	reader *schema.Node
}

// cache memoizes record grammars for one top-level call. Entries are
// inserted before a record's fields are generated, which is what stops
// recursion and makes self-references point back at the same *Seq.
type cache struct {
	base  map[*schema.Node]symbol.Symbol
	pairs map[pair]symbol.Symbol
}

func newCache() *cache {
	return &cache{
		base:  make(map[*schema.Node]symbol.Symbol),
		pairs: make(map[pair]symbol.Symbol),
	}
}

func (c *cache) lookupBase(n *schema.Node) (symbol.Symbol, bool) {
	s, ok := c.base[n]
	return s, ok
}

func (c *cache) storeBase(n *schema.Node, s symbol.Symbol) {
	c.base[n] = s
}

func (c *cache) lookupPair(w, r *schema.Node) (symbol.Symbol, bool) {
	s, ok := c.pairs[pair{w, r}]
	return s, ok
}

func (c *cache) storePair(w, r *schema.Node, s symbol.Symbol) {
	c.pairs[pair{w, r}] = s
}
