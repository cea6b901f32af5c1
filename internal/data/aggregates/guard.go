package aggregates

import (
	"context"
	"strings"

	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
)

// Transition computes the next aggregate value from a freshly loaded one.
// ctx belongs to the unit of work holding current.
type Transition[V any] func(ctx context.Context, current versioning.Aggregate[V]) (versioning.Aggregate[V], error)

// ConcurrencyGuard serializes writes per item: load exclusively, apply one
// transition to that value, commit. It never retries.
type ConcurrencyGuard[V any] struct {
	store Store[V]
	base  BaseDeps
}

func NewConcurrencyGuard[V any](store Store[V], base BaseDeps) *ConcurrencyGuard[V] {
	return &ConcurrencyGuard[V]{store: store, base: base.withDefaults()}
}

// Execute runs fn against the item held exclusively and commits its result.
// A failing fn leaves the store untouched.
func (g *ConcurrencyGuard[V]) Execute(ctx context.Context, op, uid string, fn Transition[V]) (versioning.Aggregate[V], error) {
	var out versioning.Aggregate[V]
	uid = strings.TrimSpace(uid)
	err := executeWrite(ctx, g.base, op, func(ctx context.Context) error {
		if uid == "" {
			return ValidationError("missing uid")
		}
		return g.store.InTx(ctx, func(uow UnitOfWork[V]) error {
			h, err := uow.LoadForUpdate(uid)
			if err != nil {
				return err
			}
			next, err := fn(uow.Context(), h.Snapshot())
			if err != nil {
				return err
			}
			if err := uow.Commit(h, next); err != nil {
				return err
			}
			out = next
			return nil
		})
	})
	return out, err
}

// Insert stores a freshly created item.
func (g *ConcurrencyGuard[V]) Insert(ctx context.Context, op string, item versioning.Aggregate[V]) error {
	return executeWrite(ctx, g.base, op, func(ctx context.Context) error {
		if err := item.Validate(); err != nil {
			return err
		}
		return g.store.InTx(ctx, func(uow UnitOfWork[V]) error {
			return uow.Insert(item)
		})
	})
}
