package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/mdr-library-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/data/memstore"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/platform/dbctx"
)

func TestInjectedTxRunner_CommitsOnSuccess(t *testing.T) {
	r := &InjectedTxRunner{}
	called := false
	err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !called {
		t.Fatalf("expected callback to run")
	}
	if b, c, rb := r.Counts(); b != 1 || c != 1 || rb != 0 {
		t.Fatalf("unexpected counters begin=%d commit=%d rollback=%d", b, c, rb)
	}
}

func TestInjectedTxRunner_FailCommitTriggersRollback(t *testing.T) {
	commitErr := errors.New("commit failed")
	r := &InjectedTxRunner{}
	r.FailCommit = commitErr
	err := r.InTx(context.Background(), func(_ dbctx.Context) error { return nil })
	if !errors.Is(err, commitErr) {
		t.Fatalf("expected commit err, got %v", err)
	}
	if b, c, rb := r.Counts(); b != 1 || c != 0 || rb != 1 {
		t.Fatalf("unexpected counters begin=%d commit=%d rollback=%d", b, c, rb)
	}
}

func TestFaultyStore_FailCommitDiscardsStagedWrites(t *testing.T) {
	ctx := context.Background()
	commitErr := errors.New("commit failed")
	s := &FaultyStore[string]{Inner: memstore.New[string](nil)}
	s.FailCommit = commitErr

	item := versioning.NewEngine[string](nil).Create("uid-1", versioning.Library{Name: "Sponsor", IsEditable: true}, "v", "alice")
	err := s.InTx(ctx, func(uow aggregates.UnitOfWork[string]) error {
		return uow.Insert(item)
	})
	if !errors.Is(err, commitErr) {
		t.Fatalf("expected commit err, got %v", err)
	}
	if _, err := s.Load(ctx, "uid-1"); !errors.Is(err, aggregates.ErrNotFound) {
		t.Fatalf("expected item to be absent, got %v", err)
	}
	if b, c, rb := s.Counts(); b != 1 || c != 0 || rb != 1 {
		t.Fatalf("unexpected counters begin=%d commit=%d rollback=%d", b, c, rb)
	}

	s.FailCommit = nil
	if err := s.InTx(ctx, func(uow aggregates.UnitOfWork[string]) error { return uow.Insert(item) }); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := s.Load(ctx, "uid-1"); err != nil {
		t.Fatalf("load after commit: %v", err)
	}
}
