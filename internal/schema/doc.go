// Package schema defines the schema model consumed by the grammar compiler
// and compiles it from CUE sources.
//
// A schema is a graph of *Node values. Records refer to other types by
// pointer, so a record that contains itself (directly or through other
// records) is a cycle in the graph. The compiler never mutates nodes and keys
// its memoization on pointer identity, never on structure.
//
// # Source Format
//
// Types are declared under three top-level structs:
//
//	record: User: fields: [
//		{name: "id", type: "long"},
//		{name: "email", type: "string", nullable: true, default: null},
//		{name: "tags", type: {array: "string"}},
//		{name: "visits", type: {counter: "long"}, default: 0},
//		{name: "status", type: "Status", default: "ACTIVE"},
//		{name: "next", type: "User", nullable: true},
//	]
//	enum: Status: values: ["ACTIVE", "BANNED"]
//	fixed: Digest: size: 16
//
// A type reference is a primitive name (boolean, int, long, float, double,
// string, uuid, bytes, timestamp, number, json, any), a declared type name,
// or a struct describing a container or anonymous type:
// {array: T}, {map: T}, {counter: T}, {record: {fields: [...]}},
// {enum: [...]}, {fixed: N}.
package schema
