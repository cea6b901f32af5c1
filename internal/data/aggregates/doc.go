// Package aggregates contains infrastructure implementations of domain aggregate contracts.
//
// Every write runs through ConcurrencyGuard: load the item exclusively inside a
// store unit of work, apply one lifecycle transition to that fresh value, and
// commit the resulting delta. Store implementations live in internal/data/memstore,
// internal/data/graph and gorm_store.go.
package aggregates
