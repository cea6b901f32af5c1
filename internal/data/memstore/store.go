// Package memstore keeps library items in process memory. Each unit of work
// holds per-item exclusive locks and stages its writes; staged writes become
// visible only when the unit of work returns without error.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/mdr-library-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

type Store[V any] struct {
	mu    sync.RWMutex
	items map[string]versioning.Aggregate[V]
	locks map[string]chan struct{}
	log   *logger.Logger
}

var _ aggregates.Store[int] = (*Store[int])(nil)

func New[V any](baseLog *logger.Logger) *Store[V] {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	return &Store[V]{
		items: map[string]versioning.Aggregate[V]{},
		locks: map[string]chan struct{}{},
		log:   baseLog.With("store", "MemoryLibraryItemStore"),
	}
}

func (s *Store[V]) Load(ctx context.Context, uid string) (versioning.Aggregate[V], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[uid]
	if !ok {
		return versioning.Aggregate[V]{}, aggregates.NotFoundError(uid)
	}
	return item, nil
}

func (s *Store[V]) History(ctx context.Context, uid string) ([]versioning.AuditEntry, error) {
	item, err := s.Load(ctx, uid)
	if err != nil {
		return nil, err
	}
	return item.Audit().History(), nil
}

// Len returns the number of stored items, deleted ones included.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store[V]) InTx(ctx context.Context, fn func(uow aggregates.UnitOfWork[V]) error) error {
	u := &unit[V]{
		store:  s,
		ctx:    ctx,
		held:   map[string]chan struct{}{},
		staged: map[string]versioning.Aggregate[V]{},
	}
	defer u.release()
	if err := fn(u); err != nil {
		return err
	}
	u.done = true

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uid := range u.order {
		s.items[uid] = u.staged[uid]
	}
	if len(u.order) > 0 {
		s.log.Debug("unit of work committed", "items", len(u.order))
	}
	return nil
}

func (s *Store[V]) lockFor(uid string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.locks[uid]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[uid] = ch
	}
	return ch
}

func (s *Store[V]) stored(uid string) (versioning.Aggregate[V], bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[uid]
	return item, ok
}

type unit[V any] struct {
	store  *Store[V]
	ctx    context.Context
	held   map[string]chan struct{}
	staged map[string]versioning.Aggregate[V]
	order  []string
	done   bool
}

type handleToken[V any] struct {
	unit *unit[V]
	uid  string
}

func (u *unit[V]) acquire(uid string) error {
	if u.done {
		return aggregates.InvariantError("unit of work already finished")
	}
	if _, ok := u.held[uid]; ok {
		return nil
	}
	ch := u.store.lockFor(uid)
	select {
	case ch <- struct{}{}:
		u.held[uid] = ch
		return nil
	case <-u.ctx.Done():
		return aggregates.RetryableError(fmt.Sprintf("waiting for lock on %s: %v", uid, u.ctx.Err()))
	}
}

func (u *unit[V]) release() {
	for uid, ch := range u.held {
		<-ch
		delete(u.held, uid)
	}
}

func (u *unit[V]) current(uid string) (versioning.Aggregate[V], bool) {
	if item, ok := u.staged[uid]; ok {
		return item, true
	}
	return u.store.stored(uid)
}

func (u *unit[V]) stage(uid string, item versioning.Aggregate[V]) {
	if _, ok := u.staged[uid]; !ok {
		u.order = append(u.order, uid)
	}
	u.staged[uid] = item
}

func (u *unit[V]) Insert(item versioning.Aggregate[V]) error {
	uid := item.UID()
	if err := u.acquire(uid); err != nil {
		return err
	}
	if _, exists := u.current(uid); exists {
		return aggregates.ConflictError("library item already exists: " + uid)
	}
	u.stage(uid, item)
	return nil
}

func (u *unit[V]) Context() context.Context { return u.ctx }

func (u *unit[V]) LoadForUpdate(uid string) (aggregates.Handle[V], error) {
	if err := u.acquire(uid); err != nil {
		return aggregates.Handle[V]{}, err
	}
	item, ok := u.current(uid)
	if !ok {
		return aggregates.Handle[V]{}, aggregates.NotFoundError(uid)
	}
	return aggregates.NewHandle(item, handleToken[V]{unit: u, uid: uid}), nil
}

func (u *unit[V]) Commit(h aggregates.Handle[V], next versioning.Aggregate[V]) error {
	tok, ok := h.Token().(handleToken[V])
	if !ok || tok.unit != u || tok.uid != next.UID() {
		return aggregates.InvariantError("handle does not belong to this unit of work")
	}
	if u.done {
		return aggregates.InvariantError("unit of work already finished")
	}
	cs, err := aggregates.Diff(h.Snapshot(), next)
	if err != nil {
		return err
	}
	cur, ok := u.current(cs.UID)
	if !ok {
		return aggregates.NotFoundError(cs.UID)
	}
	if err := aggregates.RequireCounterMatch(cur.Audit().Len(), cs.ExpectedAuditLen); err != nil {
		return err
	}
	u.stage(cs.UID, next)
	return nil
}
