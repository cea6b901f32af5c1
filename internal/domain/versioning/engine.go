package versioning

import (
	"reflect"
	"strings"
	"time"
)

// EqualFunc decides whether two payloads are the same value.
type EqualFunc[V any] func(a, b V) bool

// Clock returns the current instant.
type Clock func() time.Time

type engineConfig struct {
	now Clock
}

type EngineOption func(*engineConfig)

// WithClock overrides the time source used for snapshot and audit timestamps.
func WithClock(now Clock) EngineOption {
	return func(c *engineConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// Engine applies lifecycle transitions to aggregates holding payloads of type V.
// It is stateless apart from its configuration and safe for concurrent use.
type Engine[V any] struct {
	equal EqualFunc[V]
	now   Clock
}

// NewEngine builds an engine. A nil equal falls back to reflect.DeepEqual.
func NewEngine[V any](equal EqualFunc[V], opts ...EngineOption) *Engine[V] {
	cfg := engineConfig{now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	if equal == nil {
		equal = func(a, b V) bool { return reflect.DeepEqual(a, b) }
	}
	return &Engine[V]{equal: equal, now: cfg.now}
}

// Equal exposes the payload predicate the engine was built with.
func (e *Engine[V]) Equal(a, b V) bool { return e.equal(a, b) }

// Create starts a new item as Draft 0.1.
func (e *Engine[V]) Create(uid string, library Library, value V, author string) Aggregate[V] {
	at := e.instantAfter(time.Time{})
	label := VersionLabel{Status: StatusDraft, Major: 0, Minor: 1}
	// An empty trail accepts any timestamped entry of a known kind.
	trail, _ := AuditTrail{}.Append(AuditEntry{
		Kind:      AuditCreate,
		Timestamp: at,
		Author:    author,
		Version:   label,
	})
	return Aggregate[V]{
		uid:     uid,
		library: library,
		versions: []Snapshot[V]{{
			Metadata: ItemMetadata{
				Version:           label,
				Author:            author,
				ChangeDescription: DescriptionInitial,
				StartDate:         at,
			},
			Payload: value,
		}},
		audit: trail,
	}
}

// EditDraft replaces the payload of a Draft and bumps its minor version.
func (e *Engine[V]) EditDraft(a Aggregate[V], value V, description, author string) (Aggregate[V], error) {
	if err := requireLive(a); err != nil {
		return a, err
	}
	cur := a.Version()
	if cur.Status != StatusDraft {
		return a, rejected(ReasonNotDraft, cur)
	}
	if !a.library.IsEditable {
		return a, rejected(ReasonNotEditable, cur)
	}
	if e.equal(a.Payload(), value) {
		return a, rejected(ReasonNoChanges, cur)
	}
	next := VersionLabel{Status: StatusDraft, Major: cur.Major, Minor: cur.Minor + 1}
	return e.transition(a, AuditEdit, next, value, author, description)
}

// Approve turns a Draft into the next major Final version.
func (e *Engine[V]) Approve(a Aggregate[V], author string) (Aggregate[V], error) {
	if err := requireLive(a); err != nil {
		return a, err
	}
	cur := a.Version()
	if cur.Status != StatusDraft {
		return a, rejected(ReasonNotDraft, cur)
	}
	if !a.library.IsEditable {
		return a, rejected(ReasonNotEditable, cur)
	}
	next := VersionLabel{Status: StatusFinal, Major: cur.Major + 1, Minor: 0}
	return e.transition(a, AuditApprove, next, a.Payload(), author, DescriptionApproved)
}

// CreateNewVersion opens a Draft on top of the current Final version.
func (e *Engine[V]) CreateNewVersion(a Aggregate[V], author string) (Aggregate[V], error) {
	if err := requireLive(a); err != nil {
		return a, err
	}
	cur := a.Version()
	if cur.Status != StatusFinal {
		return a, rejected(ReasonCannotCreateDraft, cur)
	}
	next := VersionLabel{Status: StatusDraft, Major: cur.Major, Minor: 1}
	return e.transition(a, AuditNewVersion, next, a.Payload(), author, DescriptionNewDraft)
}

// Retire moves a Final version to Retired, keeping its numbers.
func (e *Engine[V]) Retire(a Aggregate[V], author string) (Aggregate[V], error) {
	if err := requireLive(a); err != nil {
		return a, err
	}
	cur := a.Version()
	if cur.Status != StatusFinal {
		return a, rejected(ReasonCannotRetire, cur)
	}
	next := VersionLabel{Status: StatusRetired, Major: cur.Major, Minor: cur.Minor}
	return e.transition(a, AuditRetire, next, a.Payload(), author, DescriptionRetired)
}

// Reactivate moves a Retired version back to Final, keeping its numbers.
func (e *Engine[V]) Reactivate(a Aggregate[V], author string) (Aggregate[V], error) {
	if err := requireLive(a); err != nil {
		return a, err
	}
	cur := a.Version()
	if cur.Status != StatusRetired {
		return a, rejected(ReasonNotRetired, cur)
	}
	next := VersionLabel{Status: StatusFinal, Major: cur.Major, Minor: cur.Minor}
	return e.transition(a, AuditReactivate, next, a.Payload(), author, DescriptionReactivated)
}

// SoftDelete ends a never-approved Draft. The history is kept.
func (e *Engine[V]) SoftDelete(a Aggregate[V], author string) (Aggregate[V], error) {
	if err := requireLive(a); err != nil {
		return a, err
	}
	cur := a.Version()
	if cur.Major != 0 || cur.Status != StatusDraft {
		return a, rejected(ReasonAccepted, cur)
	}
	next := VersionLabel{Status: StatusDeleted, Major: 0, Minor: cur.Minor}
	return e.transition(a, AuditDelete, next, a.Payload(), author, DescriptionDeleted)
}

func requireLive[V any](a Aggregate[V]) error {
	if a.IsZero() {
		return invalidState("aggregate has not been created")
	}
	if a.Deleted() {
		return rejected(ReasonLabelsChanged, a.Version())
	}
	return nil
}

func (e *Engine[V]) transition(a Aggregate[V], kind AuditKind, next VersionLabel, payload V, author, description string) (Aggregate[V], error) {
	at := e.instantAfter(a.Metadata().StartDate)
	if last, ok := a.audit.Last(); ok && !at.After(last.Timestamp) {
		at = last.Timestamp.Add(time.Microsecond)
	}
	trail, err := a.audit.Append(AuditEntry{
		Kind:      kind,
		Timestamp: at,
		Author:    author,
		Version:   next,
	})
	if err != nil {
		return a, err
	}

	versions := make([]Snapshot[V], len(a.versions), len(a.versions)+1)
	copy(versions, a.versions)
	versions[len(versions)-1].Metadata = versions[len(versions)-1].Metadata.closedAt(at)
	versions = append(versions, Snapshot[V]{
		Metadata: ItemMetadata{
			Version:           next,
			Author:            author,
			ChangeDescription: strings.TrimSpace(description),
			StartDate:         at,
		},
		Payload: payload,
	})

	return Aggregate[V]{
		uid:      a.uid,
		library:  a.library,
		versions: versions,
		audit:    trail,
	}, nil
}

// instantAfter returns now at microsecond precision, nudged past prev so that
// consecutive snapshots never share a start date.
func (e *Engine[V]) instantAfter(prev time.Time) time.Time {
	at := e.now().UTC().Truncate(time.Microsecond)
	if !prev.IsZero() && !at.After(prev) {
		at = prev.Add(time.Microsecond)
	}
	return at
}
