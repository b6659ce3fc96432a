package grpc

import (
	"sync"
	"sync/atomic"

	"github.com/mr1hm/go-accident-alerts/internal/ledger"
)

const subscriberBuffer = 100

// Broadcaster fans ledger appends out to stream subscribers. Slow
// subscribers miss entries rather than hold up the ledger.
type Broadcaster struct {
	subscribers map[uint64]chan ledger.Entry
	nextID      atomic.Uint64
	mu          sync.RWMutex
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[uint64]chan ledger.Entry),
	}
}

func (b *Broadcaster) Subscribe() (uint64, <-chan ledger.Entry) {
	id := b.nextID.Add(1)
	ch := make(chan ledger.Entry, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()

	return id, ch
}

func (b *Broadcaster) Unsubscribe(id uint64) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Broadcast(e ledger.Entry) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			// Skip slow subscribers
		}
	}
}

// Hook adapts the broadcaster to a ledger append hook. Each entry gets its
// own copy of the alert.
func (b *Broadcaster) Hook() ledger.AppendHook {
	return func(e ledger.Entry) {
		e.Alert = e.Alert.Clone()
		b.Broadcast(e)
	}
}

func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Close closes all subscriber channels, causing streams to exit gracefully
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, id)
	}
}
