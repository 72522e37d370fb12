// Package store provides the SQLite-backed schema registry.
//
// The registry keeps every schema version ever registered:
//   - Schemas: one row per distinct fingerprint, with the CUE source it was
//     compiled from and a per-name logical version
//   - Resolutions: grammar dumps recorded for (writer, reader) pairs
//
// # Identity and Ordering
//
// A schema is identified by its fingerprint (schema.Fingerprint), never by
// name. Registering the same graph twice returns the existing entry.
// Versions count distinct fingerprints per name starting at 1, and every
// insert takes the next value of a store-wide logical seq. Queries order
// by version or seq, never by wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Resolutions must reference registered schemas
package store
