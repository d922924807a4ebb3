// Package eventbus decouples the aggregation side from its consumers
// (alert evaluation, SSE streaming) with an in-memory fanout bus.
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Message types published by wastebot.
const (
	// EventsUpdated carries the full merged snapshot ([]waste.Event) of a
	// completed refresh cycle. One message per cycle, never partial.
	EventsUpdated = "events.updated"
	// AlertRaised carries a due.Alert for a pickup entering its lead window.
	AlertRaised = "alert.raised"
	// NotifySent / NotifyFailed / NotifyDropped trace the outbound
	// notification pipeline.
	NotifySent    = "notify.sent"
	NotifyFailed  = "notify.failed"
	NotifyDropped = "notify.dropped"
)

// Message is a lightweight in-memory signal.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Subscribers MUST drain their buffered channels.
//   - Slow subscribers may lose messages (bounded backpressure); the next
//     refresh cycle re-publishes a complete snapshot anyway.
type Message struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	Publish(m Message)
	Subscribe(buffer int) (ch <-chan Message, unsubscribe func())
}

// New returns a simple in-memory fanout bus. It owns no goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]chan Message{}}
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]chan Message
	seq  atomic.Uint64
}

func (b *memBus) Publish(m Message) {
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while sending.
	b.mu.RLock()
	chs := make([]chan Message, 0, len(b.subs))
	for _, ch := range b.subs {
		chs = append(chs, ch)
	}
	b.mu.RUnlock()

	for _, ch := range chs {
		// Non-blocking delivery; recover in case a subscriber closed its
		// channel concurrently with this send.
		func() {
			defer func() { _ = recover() }()
			select {
			case ch <- m:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	ch := make(chan Message, buffer)
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsub
}
