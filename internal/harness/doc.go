// Package harness runs schema evolution scenarios.
//
// A scenario names a writer type and a reader type, each declared in a
// CUE schema file. The harness resolves the pair into a grammar, encodes
// every step's value with the writer schema, decodes the bytes through the
// grammar and checks the reader-shaped result.
//
// # Scenario Format
//
//	name: user_v1_to_v2
//	description: "email dropped, status added with a default"
//	writer:
//	  schema: schemas/user_v1.cue
//	  type: User
//	reader:
//	  schema: schemas/user_v2.cue
//	  type: User
//	steps:
//	  - name: basic
//	    write: { id: 7, name: "ada", email: null }
//	    expect: { id: 7, name: "ada", status: "ACTIVE" }
//	assertions:
//	  - type: deferred_errors
//	    count: 0
//	  - type: same_reads
//
// Schema paths are relative to the scenario file. When reader is omitted
// the writer is resolved against itself.
//
// Expect clauses use subset semantics: only the listed fields are
// compared, numbers compare by value whatever their width, and enums
// compare by symbol. A step may instead name expect_error, a substring of
// the decode error. A scenario whose pair cannot be resolved at all sets
// expect_config_error to the construction error code (E201-E206).
//
// # Assertion Types
//
//   - grammar_contains: the grammar dump contains text
//   - deferred_errors: the grammar embeds exactly count error symbols
//   - same_reads: every decoded step took the same input reads as the
//     writer's own grammar
//   - field_order: decoded records carry exactly fields, in order
//
// # Golden Files
//
// RunWithGolden snapshots the grammar dump and every step's input and
// output as canonical JSON under testdata/golden/{name}.golden.
package harness
