// Package syncbus distributes and reconciles cross-branch change events.
package syncbus

import (
	"context"
	"sync"

	"github.com/warp/payroll-engine/core"
)

// =============================================================================
// MEMORY BUS - In-process SyncBus (for testing/dev and single-node runs)
// =============================================================================

// MemoryBus is an in-process core.SyncBus. Publish fans out to every
// subscriber of the entity type; slow subscribers drop events rather than
// block the publisher, matching the bus's eventually-consistent contract.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[core.EntityType][]chan core.ChangeEvent
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[core.EntityType][]chan core.ChangeEvent)}
}

var _ core.SyncBus = (*MemoryBus)(nil)

func (b *MemoryBus) Publish(_ context.Context, event core.ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[event.Entity] {
		select {
		case ch <- event:
		default:
			// Subscriber lagging; the next reconciliation pass catches up.
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, entity core.EntityType) (<-chan core.ChangeEvent, error) {
	ch := make(chan core.ChangeEvent, 64)

	b.mu.Lock()
	b.subs[entity] = append(b.subs[entity], ch)
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()
		channels := b.subs[entity]
		for i, c := range channels {
			if c == ch {
				b.subs[entity] = append(channels[:i], channels[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}
