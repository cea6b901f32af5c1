package versioning

import (
	"fmt"
	"iter"
	"slices"
	"time"
)

// AuditKind names the transition recorded by an AuditEntry.
type AuditKind string

const (
	AuditCreate     AuditKind = "Create"
	AuditEdit       AuditKind = "Edit"
	AuditApprove    AuditKind = "Approve"
	AuditNewVersion AuditKind = "NewVersion"
	AuditRetire     AuditKind = "Retire"
	AuditReactivate AuditKind = "Reactivate"
	AuditDelete     AuditKind = "Delete"
)

func (k AuditKind) Valid() bool {
	switch k {
	case AuditCreate, AuditEdit, AuditApprove, AuditNewVersion, AuditRetire, AuditReactivate, AuditDelete:
		return true
	default:
		return false
	}
}

// AuditEntry is an immutable record of one committed transition.
// Seq starts at 1 and has no gaps within a trail.
type AuditEntry struct {
	Seq       int          `json:"seq"`
	Kind      AuditKind    `json:"kind"`
	Timestamp time.Time    `json:"timestamp"`
	Author    string       `json:"author"`
	Version   VersionLabel `json:"version"`
}

// ResultingStatus is the status the item had right after the entry.
func (e AuditEntry) ResultingStatus() Status { return e.Version.Status }

// AuditTrail is an append-only, timestamp-ordered list of entries.
// The zero value is an empty trail.
type AuditTrail struct {
	entries []AuditEntry
}

// NewAuditTrail rebuilds a trail from stored entries, checking their order.
func NewAuditTrail(entries ...AuditEntry) (AuditTrail, error) {
	var t AuditTrail
	for _, e := range entries {
		if e.Seq != len(t.entries)+1 {
			return AuditTrail{}, invalidState(fmt.Sprintf("audit entry seq %d out of order, expected %d", e.Seq, len(t.entries)+1))
		}
		next, err := t.Append(e)
		if err != nil {
			return AuditTrail{}, err
		}
		t = next
	}
	return t, nil
}

// Append returns a new trail ending with e. Seq is assigned by the trail.
func (t AuditTrail) Append(e AuditEntry) (AuditTrail, error) {
	if !e.Kind.Valid() {
		return t, invalidState(fmt.Sprintf("unknown audit kind %q", e.Kind))
	}
	if e.Timestamp.IsZero() {
		return t, invalidState("audit entry requires a timestamp")
	}
	if last, ok := t.Last(); ok && !e.Timestamp.After(last.Timestamp) {
		return t, invalidState(fmt.Sprintf("audit entry at %s is not after %s", e.Timestamp.Format(time.RFC3339Nano), last.Timestamp.Format(time.RFC3339Nano)))
	}
	e.Seq = len(t.entries) + 1
	out := make([]AuditEntry, len(t.entries), len(t.entries)+1)
	copy(out, t.entries)
	return AuditTrail{entries: append(out, e)}, nil
}

func (t AuditTrail) Len() int { return len(t.entries) }

func (t AuditTrail) Last() (AuditEntry, bool) {
	if len(t.entries) == 0 {
		return AuditEntry{}, false
	}
	return t.entries[len(t.entries)-1], true
}

// At returns the entry with the given 1-based seq.
func (t AuditTrail) At(seq int) (AuditEntry, bool) {
	if seq < 1 || seq > len(t.entries) {
		return AuditEntry{}, false
	}
	return t.entries[seq-1], true
}

// History returns a copy of all entries in commit order.
func (t AuditTrail) History() []AuditEntry {
	return slices.Clone(t.entries)
}

// All iterates the entries in commit order. It can be ranged over repeatedly.
func (t AuditTrail) All() iter.Seq[AuditEntry] {
	entries := t.entries
	return func(yield func(AuditEntry) bool) {
		for _, e := range entries {
			if !yield(e) {
				return
			}
		}
	}
}
