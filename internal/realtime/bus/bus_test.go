package bus

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	domainagg "github.com/yungbote/mdr-library-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

func testEvent(seq int) domainagg.LifecycleEvent {
	ts := time.Date(2026, 3, 1, 12, 0, seq, 0, time.UTC)
	return domainagg.NewLifecycleEvent("term", "t-1", "Sponsor", versioning.AuditEntry{
		Seq:       seq,
		Kind:      versioning.AuditEdit,
		Timestamp: ts,
		Author:    "alice",
		Version:   versioning.VersionLabel{Status: versioning.StatusDraft, Major: 0, Minor: seq},
	})
}

func recvEvent(t *testing.T, ch <-chan domainagg.LifecycleEvent, timeout time.Duration) domainagg.LifecycleEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for lifecycle event")
	}
	return domainagg.LifecycleEvent{}
}

func TestMemoryBusFansOutInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewMemoryBus(logger.NewNop())
	defer b.Close()

	a := make(chan domainagg.LifecycleEvent, 4)
	c := make(chan domainagg.LifecycleEvent, 4)
	if err := b.StartForwarder(ctx, func(ev domainagg.LifecycleEvent) { a <- ev }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	if err := b.StartForwarder(ctx, func(ev domainagg.LifecycleEvent) { c <- ev }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}

	for seq := 1; seq <= 3; seq++ {
		if err := b.PublishLifecycle(ctx, testEvent(seq)); err != nil {
			t.Fatalf("PublishLifecycle: %v", err)
		}
	}
	for _, ch := range []chan domainagg.LifecycleEvent{a, c} {
		for seq := 1; seq <= 3; seq++ {
			ev := recvEvent(t, ch, time.Second)
			if ev.Seq != seq || ev.Version != fmt.Sprintf("0.%d", seq) {
				t.Fatalf("event %d: got seq=%d version=%s", seq, ev.Seq, ev.Version)
			}
		}
	}
}

func TestMemoryBusClosed(t *testing.T) {
	b := NewMemoryBus(nil)
	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := b.PublishLifecycle(context.Background(), testEvent(1)); err == nil {
		t.Fatalf("expected publish on closed bus to fail")
	}
	if err := b.StartForwarder(context.Background(), func(domainagg.LifecycleEvent) {}); err == nil {
		t.Fatalf("expected subscribe on closed bus to fail")
	}
}

func TestMemoryBusForwarderStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := NewMemoryBus(nil).(*memoryBus)
	if err := b.StartForwarder(ctx, func(domainagg.LifecycleEvent) {}); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	cancel()
	deadline := time.Now().Add(time.Second)
	for {
		b.mu.RLock()
		n := len(b.subs)
		b.mu.RUnlock()
		if n == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("subscriber still registered after cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewRedisBusRequiresAddr(t *testing.T) {
	if _, err := NewRedisBus(logger.NewNop(), RedisConfig{}); err == nil {
		t.Fatalf("expected error without addr")
	}
	if _, err := NewRedisBus(nil, RedisConfig{Addr: "localhost:6379"}); err == nil {
		t.Fatalf("expected error without logger")
	}
}

func TestRedisBusRoundTrip(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b, err := NewRedisBus(logger.NewNop(), RedisConfig{Addr: addr, Channel: "mdr.test." + uuid.NewString()})
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	defer b.Close()

	got := make(chan domainagg.LifecycleEvent, 1)
	if err := b.StartForwarder(ctx, func(ev domainagg.LifecycleEvent) { got <- ev }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	want := testEvent(2)
	if err := b.PublishLifecycle(ctx, want); err != nil {
		t.Fatalf("PublishLifecycle: %v", err)
	}
	ev := recvEvent(t, got, 5*time.Second)
	if ev.UID != want.UID || ev.Seq != want.Seq || !ev.OccurredAt.Equal(want.OccurredAt) {
		t.Fatalf("got %+v, want %+v", ev, want)
	}
}
