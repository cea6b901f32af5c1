package aggregates

import (
	"context"
	"fmt"

	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
)

// Store is the persistence boundary of library items holding payloads of type V.
//
// Load and History are non-exclusive and may observe state that a concurrent
// unit of work is about to replace. Decisions that must hold at commit time
// are taken inside InTx, on the value returned by LoadForUpdate.
type Store[V any] interface {
	Load(ctx context.Context, uid string) (versioning.Aggregate[V], error)
	History(ctx context.Context, uid string) ([]versioning.AuditEntry, error)
	// InTx runs fn in one atomic unit of work. Nothing fn staged is kept when
	// fn returns an error.
	InTx(ctx context.Context, fn func(uow UnitOfWork[V]) error) error
}

// UnitOfWork is only valid inside the InTx callback that produced it.
type UnitOfWork[V any] interface {
	Insert(item versioning.Aggregate[V]) error
	// LoadForUpdate blocks until the item is held exclusively by this unit of
	// work. It returns ErrNotFound when the uid is unknown.
	LoadForUpdate(uid string) (Handle[V], error)
	// Commit persists the single transition between h.Snapshot() and next.
	Commit(h Handle[V], next versioning.Aggregate[V]) error
	// Context is the context reads inside this unit of work must use. For
	// relational stores it carries the open transaction.
	Context() context.Context
}

// Handle is the exclusive view of one item inside a unit of work.
type Handle[V any] struct {
	snapshot versioning.Aggregate[V]
	token    any
}

// NewHandle is used by Store implementations; token is opaque to callers.
func NewHandle[V any](snapshot versioning.Aggregate[V], token any) Handle[V] {
	return Handle[V]{snapshot: snapshot, token: token}
}

func (h Handle[V]) Snapshot() versioning.Aggregate[V] { return h.snapshot }

func (h Handle[V]) Token() any { return h.token }

// ChangeSet is what a store writes for one committed transition.
type ChangeSet[V any] struct {
	UID string
	// Closed is the previously current snapshot, now carrying its end date.
	// ClosedSeq is its 1-based position in the chain.
	Closed    versioning.Snapshot[V]
	ClosedSeq int
	// Opened is the new current snapshot at position ClosedSeq+1.
	Opened versioning.Snapshot[V]
	Entry  versioning.AuditEntry
	// ExpectedAuditLen is the trail length the handle was taken at.
	ExpectedAuditLen int
	Status           versioning.Status
}

// Diff validates that next extends prev by exactly one transition and returns
// the rows to write.
func Diff[V any](prev, next versioning.Aggregate[V]) (ChangeSet[V], error) {
	var cs ChangeSet[V]
	if prev.UID() != next.UID() {
		return cs, InvariantError(fmt.Sprintf("commit uid mismatch: %s != %s", prev.UID(), next.UID()))
	}
	pv, nv := prev.Versions(), next.Versions()
	if len(pv) == 0 {
		return cs, InvariantError("commit on an empty aggregate")
	}
	if len(nv) != len(pv)+1 || next.Audit().Len() != prev.Audit().Len()+1 {
		return cs, InvariantError(fmt.Sprintf("commit of %s must append exactly one transition (versions %d -> %d, audit %d -> %d)",
			prev.UID(), len(pv), len(nv), prev.Audit().Len(), next.Audit().Len()))
	}
	for i := 0; i < len(pv)-1; i++ {
		if pv[i].Metadata.Version != nv[i].Metadata.Version || !pv[i].Metadata.StartDate.Equal(nv[i].Metadata.StartDate) {
			return cs, InvariantError(fmt.Sprintf("commit of %s rewrites version %d", prev.UID(), i+1))
		}
	}
	for seq := 1; seq <= prev.Audit().Len(); seq++ {
		a, _ := prev.Audit().At(seq)
		b, _ := next.Audit().At(seq)
		if a != b {
			return cs, InvariantError(fmt.Sprintf("commit of %s rewrites audit entry %d", prev.UID(), seq))
		}
	}
	closed := nv[len(pv)-1]
	if closed.Metadata.Open() || closed.Metadata.Version != pv[len(pv)-1].Metadata.Version {
		return cs, InvariantError(fmt.Sprintf("commit of %s does not close version %d", prev.UID(), len(pv)))
	}
	entry, _ := next.Audit().Last()
	return ChangeSet[V]{
		UID:              next.UID(),
		Closed:           closed,
		ClosedSeq:        len(pv),
		Opened:           nv[len(nv)-1],
		Entry:            entry,
		ExpectedAuditLen: prev.Audit().Len(),
		Status:           next.Status(),
	}, nil
}
