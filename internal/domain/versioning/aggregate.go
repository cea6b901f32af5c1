package versioning

import (
	"fmt"
	"slices"
	"strings"
)

// Aggregate is one versioned library item. It owns its snapshot chain and its
// audit trail; both only grow. Values are never modified after construction.
type Aggregate[V any] struct {
	uid      string
	library  Library
	versions []Snapshot[V]
	audit    AuditTrail
}

// Rehydrate rebuilds an aggregate from stored state and checks its invariants.
func Rehydrate[V any](uid string, library Library, versions []Snapshot[V], audit []AuditEntry) (Aggregate[V], error) {
	trail, err := NewAuditTrail(audit...)
	if err != nil {
		return Aggregate[V]{}, err
	}
	a := Aggregate[V]{
		uid:      uid,
		library:  library,
		versions: slices.Clone(versions),
		audit:    trail,
	}
	if err := a.Validate(); err != nil {
		return Aggregate[V]{}, err
	}
	return a, nil
}

func (a Aggregate[V]) UID() string { return a.uid }

func (a Aggregate[V]) Library() Library { return a.library }

// WithLibrary returns a copy bound to a freshly resolved library.
func (a Aggregate[V]) WithLibrary(lib Library) Aggregate[V] {
	a.library = lib
	return a
}

// IsZero reports whether a was never created.
func (a Aggregate[V]) IsZero() bool { return len(a.versions) == 0 }

func (a Aggregate[V]) current() Snapshot[V] {
	if len(a.versions) == 0 {
		var zero Snapshot[V]
		return zero
	}
	return a.versions[len(a.versions)-1]
}

// Payload is the payload of the current snapshot.
func (a Aggregate[V]) Payload() V { return a.current().Payload }

// Metadata is the current (open) snapshot metadata.
func (a Aggregate[V]) Metadata() ItemMetadata { return a.current().Metadata }

func (a Aggregate[V]) Version() VersionLabel { return a.current().Metadata.Version }

func (a Aggregate[V]) Status() Status { return a.current().Metadata.Version.Status }

func (a Aggregate[V]) Deleted() bool { return a.Status() == StatusDeleted }

// Versions returns every snapshot, oldest first.
func (a Aggregate[V]) Versions() []Snapshot[V] { return slices.Clone(a.versions) }

func (a Aggregate[V]) Audit() AuditTrail { return a.audit }

func (a Aggregate[V]) PossibleActions() []Action { return PossibleActions(a.Version()) }

// Latest returns the most recent snapshot recorded with the given status.
func (a Aggregate[V]) Latest(status Status) (Snapshot[V], bool) {
	for i := len(a.versions) - 1; i >= 0; i-- {
		if a.versions[i].Metadata.Version.Status == status {
			return a.versions[i], true
		}
	}
	var zero Snapshot[V]
	return zero, false
}

// Validate checks the structural invariants of the aggregate.
func (a Aggregate[V]) Validate() error {
	if strings.TrimSpace(a.uid) == "" {
		return invalidState("aggregate uid is empty")
	}
	if len(a.versions) == 0 {
		return invalidState(fmt.Sprintf("aggregate %s has no versions", a.uid))
	}
	if a.audit.Len() != len(a.versions) {
		return invalidState(fmt.Sprintf("aggregate %s has %d versions but %d audit entries", a.uid, len(a.versions), a.audit.Len()))
	}
	for i, s := range a.versions {
		m := s.Metadata
		if err := m.Version.Validate(); err != nil {
			return err
		}
		if m.StartDate.IsZero() {
			return invalidState(fmt.Sprintf("version %d of %s has no start date", i+1, a.uid))
		}
		last := i == len(a.versions)-1
		if last {
			if !m.Open() {
				return invalidState(fmt.Sprintf("current version of %s is closed", a.uid))
			}
		} else {
			if m.Open() {
				return invalidState(fmt.Sprintf("version %d of %s is still open", i+1, a.uid))
			}
			if !m.EndDate.Equal(a.versions[i+1].Metadata.StartDate) {
				return invalidState(fmt.Sprintf("version %d of %s ends at %s but next starts at %s", i+1, a.uid, m.EndDate, a.versions[i+1].Metadata.StartDate))
			}
		}
		entry, _ := a.audit.At(i + 1)
		if !entry.Timestamp.Equal(m.StartDate) {
			return invalidState(fmt.Sprintf("audit entry %d of %s is not aligned with its version start date", i+1, a.uid))
		}
		if entry.Version != m.Version {
			return invalidState(fmt.Sprintf("audit entry %d of %s records %s %s, version has %s %s",
				i+1, a.uid, entry.Version.Status, entry.Version, m.Version.Status, m.Version))
		}
	}
	if _, err := Replay(a.audit.History()); err != nil {
		return err
	}
	return nil
}
