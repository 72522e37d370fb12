// Package value provides the value model shared by schema defaults, the
// encoder and the grammar-driven decoder.
//
// This package imports nothing internal. schema, grammar and codec all build
// on it, so it stays at the bottom of the dependency graph.
//
// Key design constraints:
//   - Value is a sealed interface; only the types in this package implement it
//   - Null is an explicit value, distinct from "no value" (a nil Value)
//   - Record keeps field order, Object does not (use SortedKeys)
//   - Canonical JSON is the only serialization used for hashing
package value
