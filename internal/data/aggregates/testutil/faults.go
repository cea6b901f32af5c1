package testutil

import (
	"context"
	"sync"

	"github.com/yungbote/mdr-library-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/platform/dbctx"
)

// Faults injects failures around a unit of work and counts its outcomes.
type Faults struct {
	mu sync.Mutex

	FailBegin  error
	FailCommit error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

func (f *Faults) begin() (failCommit error, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BeginCalls++
	return f.FailCommit, f.FailBegin
}

func (f *Faults) finish(committed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if committed {
		f.CommitCalls++
	} else {
		f.RollbackCalls++
	}
}

// Counts returns begin, commit and rollback counters.
func (f *Faults) Counts() (begin, commit, rollback int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.BeginCalls, f.CommitCalls, f.RollbackCalls
}

// InjectedTxRunner runs gorm-store callbacks without a database.
type InjectedTxRunner struct {
	Faults
}

var _ aggregates.TxRunner = (*InjectedTxRunner)(nil)

func (r *InjectedTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	failCommit, err := r.begin()
	if err != nil {
		return err
	}
	if fn != nil {
		if err := fn(dbctx.Context{Ctx: ctx}); err != nil {
			r.finish(false)
			return err
		}
	}
	if failCommit != nil {
		r.finish(false)
		return failCommit
	}
	r.finish(true)
	return nil
}

// FaultyStore wraps a Store and fails units of work on demand. A FailCommit
// error is raised after the callback succeeded, so the inner store discards
// everything the callback staged.
type FaultyStore[V any] struct {
	Faults
	Inner aggregates.Store[V]
}

var _ aggregates.Store[int] = (*FaultyStore[int])(nil)

func (s *FaultyStore[V]) Load(ctx context.Context, uid string) (versioning.Aggregate[V], error) {
	return s.Inner.Load(ctx, uid)
}

func (s *FaultyStore[V]) History(ctx context.Context, uid string) ([]versioning.AuditEntry, error) {
	return s.Inner.History(ctx, uid)
}

func (s *FaultyStore[V]) InTx(ctx context.Context, fn func(uow aggregates.UnitOfWork[V]) error) error {
	failCommit, err := s.begin()
	if err != nil {
		return err
	}
	err = s.Inner.InTx(ctx, func(uow aggregates.UnitOfWork[V]) error {
		if err := fn(uow); err != nil {
			return err
		}
		return failCommit
	})
	s.finish(err == nil)
	return err
}
