// Package grammar compiles schemas into decode grammars.
//
// Generate builds the grammar that reads data written with a schema.
// Resolve builds the grammar that reads data written with a writer schema
// and produces values shaped by a reader schema: it promotes numbers,
// reorders and skips record fields, injects encoded defaults for fields the
// writer lacks, reconciles nullability and remaps enum ordinals.
//
// Resolution problems that only matter if the affected data is actually
// read (a kind mismatch, a missing required field) become *symbol.Error
// nodes inside the grammar. Problems that make the schemas unusable (a
// wildcard type, a default that does not fit its field) fail construction
// with a *ConfigError.
//
// Each top-level call owns a fresh cache keyed on node identity, so calls
// are safe to run concurrently and the resulting grammars are immutable.
//
// # Production Order
//
// Sequences are stored in production order and executed last to first:
//
//	record {a, b}            Seq(gen(b), gen(a))
//	array<T>                 Seq(Repeat(ArrayEnd, gen(T)), ArrayStart)
//	nullable T, null first   Seq(Alt(Null, gen(T)), Union)
//	counter<T>               Seq(Repeat(CrdtEnd, gen(T), count Int), CrdtStart)
package grammar
