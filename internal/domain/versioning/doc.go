// Package versioning implements the lifecycle state machine shared by every
// versioned library item.
//
// An Aggregate is an immutable value: every transition on Engine validates the
// value it receives and returns a new Aggregate with one more ItemMetadata
// snapshot and one more AuditEntry. Persistence and locking live elsewhere;
// this package never performs I/O.
package versioning
