package bus

import (
	"sync"

	"github.com/jkaberg/devdash/internal/domain"
)

// Bus provides fan-out pub/sub semantics for *domain.Snapshot* messages.
// Each Subscribe call gets its own channel that receives every future
// publication. Past messages are not replayed. The implementation is safe for
// concurrent publishers and subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan *domain.Snapshot
	closed      bool
}

// New creates a ready-to-use Bus.
func New() *Bus { return &Bus{} }

// Subscribe returns a read-only channel that will receive all future
// snapshots. Subscribing to a closed bus returns a closed channel.
func (b *Bus) Subscribe() <-chan *domain.Snapshot {
	ch := make(chan *domain.Snapshot, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Publish delivers the snapshot to all subscribers without blocking. A
// subscriber whose buffer is full misses this snapshot and gets the next one.
// Publishing on a closed bus is a no-op.
func (b *Bus) Publish(s *domain.Snapshot) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subscribers {
		select {
		case ch <- s:
		default:
		}
	}
}

// Close closes every subscriber channel. Further Publish calls are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
