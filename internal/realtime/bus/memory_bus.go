package bus

import (
	"context"
	"fmt"
	"sync"

	domainagg "github.com/yungbote/mdr-library-backend/internal/domain/aggregates"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

const memoryBufferSize = 256

type memorySub struct {
	ch   chan domainagg.LifecycleEvent
	done chan struct{}
}

// memoryBus is the single-process bus. A subscriber that falls behind by more
// than memoryBufferSize events loses the overflow; the drop is logged.
type memoryBus struct {
	log    *logger.Logger
	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	closed bool
}

func NewMemoryBus(log *logger.Logger) Bus {
	if log == nil {
		log = logger.NewNop()
	}
	return &memoryBus{
		log:  log.With("service", "MemoryLifecycleBus"),
		subs: map[*memorySub]struct{}{},
	}
}

func (b *memoryBus) PublishLifecycle(_ context.Context, ev domainagg.LifecycleEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("lifecycle bus closed")
	}
	for s := range b.subs {
		select {
		case s.ch <- ev:
		default:
			b.log.Warn("lifecycle subscriber lagging, event dropped", "uid", ev.UID, "seq", ev.Seq)
		}
	}
	return nil
}

func (b *memoryBus) StartForwarder(ctx context.Context, onMsg func(ev domainagg.LifecycleEvent)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	s := &memorySub{ch: make(chan domainagg.LifecycleEvent, memoryBufferSize), done: make(chan struct{})}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("lifecycle bus closed")
	}
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	go func() {
		defer b.remove(s)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case ev := <-s.ch:
				onMsg(ev)
			}
		}
	}()
	return nil
}

func (b *memoryBus) remove(s *memorySub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

func (b *memoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for s := range b.subs {
		close(s.done)
	}
	return nil
}
