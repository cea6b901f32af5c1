package aggregates

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/observability"
)

// CachedStore is a read-through cache in front of Store.Load. Aggregates are
// immutable values, so cached entries are shared without copying. Every unit
// of work invalidates the items it touched once it returns.
type CachedStore[V any] struct {
	inner      Store[V]
	cache      *gocache.Cache
	group      singleflight.Group
	mu         sync.Mutex
	epoch      atomic.Uint64
	entityType string
	metrics    *observability.Metrics
}

func NewCachedStore[V any](inner Store[V], ttl time.Duration, entityType string, metrics *observability.Metrics) *CachedStore[V] {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedStore[V]{
		inner:      inner,
		cache:      gocache.New(ttl, 2*ttl),
		entityType: entityType,
		metrics:    metrics,
	}
}

func (s *CachedStore[V]) Load(ctx context.Context, uid string) (versioning.Aggregate[V], error) {
	if v, ok := s.cache.Get(uid); ok {
		s.metrics.IncReadCache(s.entityType, true)
		return v.(versioning.Aggregate[V]), nil
	}
	s.metrics.IncReadCache(s.entityType, false)
	v, err, _ := s.group.Do(uid, func() (interface{}, error) {
		epoch := s.epoch.Load()
		item, err := s.inner.Load(ctx, uid)
		if err != nil {
			return nil, err
		}
		// A commit that finished while we were loading may have been missed.
		s.mu.Lock()
		if s.epoch.Load() == epoch {
			s.cache.SetDefault(uid, item)
		}
		s.mu.Unlock()
		return item, nil
	})
	if err != nil {
		return versioning.Aggregate[V]{}, err
	}
	return v.(versioning.Aggregate[V]), nil
}

func (s *CachedStore[V]) History(ctx context.Context, uid string) ([]versioning.AuditEntry, error) {
	return s.inner.History(ctx, uid)
}

func (s *CachedStore[V]) InTx(ctx context.Context, fn func(uow UnitOfWork[V]) error) error {
	touched := &touchedUIDs{}
	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.epoch.Add(1)
		for _, uid := range touched.list() {
			s.cache.Delete(uid)
		}
	}()
	return s.inner.InTx(ctx, func(uow UnitOfWork[V]) error {
		return fn(&trackingUnit[V]{inner: uow, touched: touched})
	})
}

// Invalidate drops every cached item.
func (s *CachedStore[V]) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch.Add(1)
	s.cache.Flush()
}

type touchedUIDs struct {
	mu   sync.Mutex
	uids []string
}

func (t *touchedUIDs) add(uid string) {
	t.mu.Lock()
	t.uids = append(t.uids, uid)
	t.mu.Unlock()
}

func (t *touchedUIDs) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.uids...)
}

type trackingUnit[V any] struct {
	inner   UnitOfWork[V]
	touched *touchedUIDs
}

func (u *trackingUnit[V]) Insert(item versioning.Aggregate[V]) error {
	u.touched.add(item.UID())
	return u.inner.Insert(item)
}

func (u *trackingUnit[V]) LoadForUpdate(uid string) (Handle[V], error) {
	u.touched.add(uid)
	return u.inner.LoadForUpdate(uid)
}

func (u *trackingUnit[V]) Context() context.Context { return u.inner.Context() }

func (u *trackingUnit[V]) Commit(h Handle[V], next versioning.Aggregate[V]) error {
	return u.inner.Commit(h, next)
}
