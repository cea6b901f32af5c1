package aggregates

import (
	"context"
	"time"

	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
)

// LibraryItemAggregateContract is shared by every versioned entity type.
var LibraryItemAggregateContract = Contract{
	Name:             "Library.ItemAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns the version snapshot chain and audit trail of one library item; every transition re-validates against state loaded under an exclusive lock.",
}

// LibraryItemAggregate owns lifecycle transitions of one entity type.
//
// Write method failures return either a *versioning.Error (lifecycle
// precondition, never retried) or an *aggregates.Error with codes:
// CodeValidation, CodeNotFound, CodeConflict, CodeRetryable, CodeInternal.
type LibraryItemAggregate[V any] interface {
	Aggregate

	// EntityType is the registry name of the payload type, e.g. "term".
	EntityType() string

	Create(ctx context.Context, in CreateLibraryItemInput[V]) (LibraryItemResult[V], error)
	EditDraft(ctx context.Context, in EditDraftInput[V]) (LibraryItemResult[V], error)
	Approve(ctx context.Context, in TransitionInput) (LibraryItemResult[V], error)
	CreateNewVersion(ctx context.Context, in TransitionInput) (LibraryItemResult[V], error)
	Retire(ctx context.Context, in TransitionInput) (LibraryItemResult[V], error)
	Reactivate(ctx context.Context, in TransitionInput) (LibraryItemResult[V], error)
	SoftDelete(ctx context.Context, in TransitionInput) (LibraryItemResult[V], error)

	// Get is a non-exclusive read; deleted items are reported as not found.
	Get(ctx context.Context, uid string) (versioning.Aggregate[V], error)
	// History returns the audit trail, including for deleted items.
	History(ctx context.Context, uid string) ([]versioning.AuditEntry, error)
	// Versions returns every snapshot, oldest first.
	Versions(ctx context.Context, uid string) ([]versioning.Snapshot[V], error)
}

type CreateLibraryItemInput[V any] struct {
	// UID is optional; one is generated when empty.
	UID     string
	Library string
	Value   V
	Author  string
}

type EditDraftInput[V any] struct {
	UID               string
	Value             V
	ChangeDescription string
	Author            string
}

type TransitionInput struct {
	UID    string
	Author string
}

// LibraryItemResult is the committed aggregate plus the entry the write appended.
type LibraryItemResult[V any] struct {
	Item  versioning.Aggregate[V]
	Entry versioning.AuditEntry
}

// LifecycleEvent is published after a transition has been committed.
type LifecycleEvent struct {
	EntityType string               `json:"entity_type"`
	UID        string               `json:"uid"`
	Library    string               `json:"library"`
	Seq        int                  `json:"seq"`
	Kind       versioning.AuditKind `json:"kind"`
	Status     versioning.Status    `json:"status"`
	Version    string               `json:"version"`
	Author     string               `json:"author"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// NewLifecycleEvent describes the entry appended to an item.
func NewLifecycleEvent(entityType, uid, library string, e versioning.AuditEntry) LifecycleEvent {
	return LifecycleEvent{
		EntityType: entityType,
		UID:        uid,
		Library:    library,
		Seq:        e.Seq,
		Kind:       e.Kind,
		Status:     e.ResultingStatus(),
		Version:    e.Version.String(),
		Author:     e.Author,
		OccurredAt: e.Timestamp,
	}
}
