package aggregates

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/mdr-library-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/observability"
)

// ErrUnknownLibrary is returned by a LibraryPolicy for names it does not know.
var ErrUnknownLibrary = errors.New("unknown library")

// LibraryPolicy resolves a library, including its editability, on every
// operation. Results must not be cached across operations by the caller.
type LibraryPolicy interface {
	Resolve(ctx context.Context, name string) (versioning.Library, error)
}

// EventPublisher receives transitions after they are committed.
type EventPublisher interface {
	PublishLifecycle(ctx context.Context, ev domainagg.LifecycleEvent) error
}

type LibraryItemAggregateDeps[V any] struct {
	Base BaseDeps

	EntityType string
	Store      Store[V]
	Engine     *versioning.Engine[V]
	Policy     LibraryPolicy
	// Events and Metrics are optional.
	Events  EventPublisher
	Metrics *observability.Metrics
	NewUID  func() string
}

type libraryItemAggregate[V any] struct {
	deps  LibraryItemAggregateDeps[V]
	guard *ConcurrencyGuard[V]
}

func NewLibraryItemAggregate[V any](deps LibraryItemAggregateDeps[V]) domainagg.LibraryItemAggregate[V] {
	deps.Base = deps.Base.withDefaults()
	deps.EntityType = strings.TrimSpace(deps.EntityType)
	if deps.Engine == nil {
		deps.Engine = versioning.NewEngine[V](nil)
	}
	if deps.NewUID == nil {
		deps.NewUID = uuid.NewString
	}
	deps.Base.Log = deps.Base.Log.With("aggregate", "LibraryItem", "entity_type", deps.EntityType)
	return &libraryItemAggregate[V]{
		deps:  deps,
		guard: NewConcurrencyGuard(deps.Store, deps.Base),
	}
}

func (a *libraryItemAggregate[V]) Contract() domainagg.Contract {
	return domainagg.LibraryItemAggregateContract
}

func (a *libraryItemAggregate[V]) EntityType() string { return a.deps.EntityType }

func (a *libraryItemAggregate[V]) op(name string) string {
	return fmt.Sprintf("Library.%s.%s", a.deps.EntityType, name)
}

func (a *libraryItemAggregate[V]) configured(op string) error {
	if a.deps.Store == nil || a.deps.Policy == nil {
		return domainagg.NewError(domainagg.CodeInternal, op, "library item aggregate store or policy not configured", nil)
	}
	return nil
}

func (a *libraryItemAggregate[V]) Create(ctx context.Context, in domainagg.CreateLibraryItemInput[V]) (domainagg.LibraryItemResult[V], error) {
	op := a.op("Create")
	var out domainagg.LibraryItemResult[V]
	if err := a.configured(op); err != nil {
		return out, err
	}
	libName := strings.TrimSpace(in.Library)
	author := strings.TrimSpace(in.Author)
	if libName == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing library", nil)
	}
	if author == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing author", nil)
	}
	uid := strings.TrimSpace(in.UID)
	if uid == "" {
		uid = a.deps.NewUID()
	}

	lib, err := a.deps.Policy.Resolve(ctx, libName)
	if err != nil {
		return out, MapError(op, err)
	}
	item := a.deps.Engine.Create(uid, lib, in.Value, author)
	if err := a.guard.Insert(ctx, op, item); err != nil {
		return out, err
	}
	entry, _ := item.Audit().Last()
	a.afterCommit(ctx, item, entry)
	return domainagg.LibraryItemResult[V]{Item: item, Entry: entry}, nil
}

func (a *libraryItemAggregate[V]) EditDraft(ctx context.Context, in domainagg.EditDraftInput[V]) (domainagg.LibraryItemResult[V], error) {
	return a.transition(ctx, "EditDraft", domainagg.TransitionInput{UID: in.UID, Author: in.Author},
		func(cur versioning.Aggregate[V], author string) (versioning.Aggregate[V], error) {
			return a.deps.Engine.EditDraft(cur, in.Value, in.ChangeDescription, author)
		})
}

func (a *libraryItemAggregate[V]) Approve(ctx context.Context, in domainagg.TransitionInput) (domainagg.LibraryItemResult[V], error) {
	return a.transition(ctx, "Approve", in, a.deps.Engine.Approve)
}

func (a *libraryItemAggregate[V]) CreateNewVersion(ctx context.Context, in domainagg.TransitionInput) (domainagg.LibraryItemResult[V], error) {
	return a.transition(ctx, "CreateNewVersion", in, a.deps.Engine.CreateNewVersion)
}

func (a *libraryItemAggregate[V]) Retire(ctx context.Context, in domainagg.TransitionInput) (domainagg.LibraryItemResult[V], error) {
	return a.transition(ctx, "Retire", in, a.deps.Engine.Retire)
}

func (a *libraryItemAggregate[V]) Reactivate(ctx context.Context, in domainagg.TransitionInput) (domainagg.LibraryItemResult[V], error) {
	return a.transition(ctx, "Reactivate", in, a.deps.Engine.Reactivate)
}

func (a *libraryItemAggregate[V]) SoftDelete(ctx context.Context, in domainagg.TransitionInput) (domainagg.LibraryItemResult[V], error) {
	return a.transition(ctx, "SoftDelete", in, a.deps.Engine.SoftDelete)
}

func (a *libraryItemAggregate[V]) transition(
	ctx context.Context,
	name string,
	in domainagg.TransitionInput,
	apply func(cur versioning.Aggregate[V], author string) (versioning.Aggregate[V], error),
) (domainagg.LibraryItemResult[V], error) {
	op := a.op(name)
	var out domainagg.LibraryItemResult[V]
	if err := a.configured(op); err != nil {
		return out, err
	}
	author := strings.TrimSpace(in.Author)
	if author == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing author", nil)
	}

	item, err := a.guard.Execute(ctx, op, in.UID, func(txCtx context.Context, cur versioning.Aggregate[V]) (versioning.Aggregate[V], error) {
		lib, err := a.deps.Policy.Resolve(txCtx, cur.Library().Name)
		if err != nil {
			return cur, err
		}
		return apply(cur.WithLibrary(lib), author)
	})
	if err != nil {
		if _, ok := versioning.AsError(err); ok {
			a.deps.Base.Log.Debug("lifecycle transition rejected", "op", op, "uid", in.UID, "reason", versioning.ReasonOf(err))
		}
		return out, err
	}
	entry, _ := item.Audit().Last()
	a.afterCommit(ctx, item, entry)
	return domainagg.LibraryItemResult[V]{Item: item, Entry: entry}, nil
}

func (a *libraryItemAggregate[V]) afterCommit(ctx context.Context, item versioning.Aggregate[V], entry versioning.AuditEntry) {
	a.deps.Metrics.IncLifecycleTransition(a.deps.EntityType, string(entry.Kind))
	a.deps.Base.Log.Debug("lifecycle transition committed",
		"uid", item.UID(),
		"kind", entry.Kind,
		"status", entry.ResultingStatus(),
		"version", entry.Version.String(),
		"author", entry.Author,
	)
	if a.deps.Events == nil {
		return
	}
	ev := domainagg.NewLifecycleEvent(a.deps.EntityType, item.UID(), item.Library().Name, entry)
	if err := a.deps.Events.PublishLifecycle(ctx, ev); err != nil {
		a.deps.Metrics.IncEventPublished("failed")
		a.deps.Base.Log.Warn("lifecycle event publish failed", "uid", item.UID(), "kind", entry.Kind, "error", err)
		return
	}
	a.deps.Metrics.IncEventPublished("ok")
}

func (a *libraryItemAggregate[V]) Get(ctx context.Context, uid string) (versioning.Aggregate[V], error) {
	op := a.op("Get")
	item, err := a.load(ctx, op, uid)
	if err != nil {
		return item, err
	}
	if item.Deleted() {
		return versioning.Aggregate[V]{}, MapError(op, NotFoundError(uid))
	}
	lib, err := a.deps.Policy.Resolve(ctx, item.Library().Name)
	if err != nil {
		return versioning.Aggregate[V]{}, MapError(op, err)
	}
	return item.WithLibrary(lib), nil
}

func (a *libraryItemAggregate[V]) History(ctx context.Context, uid string) ([]versioning.AuditEntry, error) {
	op := a.op("History")
	if err := a.configured(op); err != nil {
		return nil, err
	}
	if strings.TrimSpace(uid) == "" {
		return nil, domainagg.NewError(domainagg.CodeValidation, op, "missing uid", nil)
	}
	entries, err := a.deps.Store.History(ctx, strings.TrimSpace(uid))
	if err != nil {
		return nil, MapError(op, err)
	}
	return entries, nil
}

func (a *libraryItemAggregate[V]) Versions(ctx context.Context, uid string) ([]versioning.Snapshot[V], error) {
	op := a.op("Versions")
	item, err := a.load(ctx, op, uid)
	if err != nil {
		return nil, err
	}
	if item.Deleted() {
		return nil, MapError(op, NotFoundError(uid))
	}
	return item.Versions(), nil
}

func (a *libraryItemAggregate[V]) load(ctx context.Context, op, uid string) (versioning.Aggregate[V], error) {
	if err := a.configured(op); err != nil {
		return versioning.Aggregate[V]{}, err
	}
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return versioning.Aggregate[V]{}, domainagg.NewError(domainagg.CodeValidation, op, "missing uid", nil)
	}
	item, err := a.deps.Store.Load(ctx, uid)
	if err != nil {
		return versioning.Aggregate[V]{}, MapError(op, err)
	}
	return item, nil
}
