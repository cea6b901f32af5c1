// Package aggregates defines domain-facing aggregate contracts.
//
// A contract names a semantic write boundary: everything a write method
// validates and persists happens inside one store unit of work, so the
// invariants it protects hold atomically.
package aggregates
