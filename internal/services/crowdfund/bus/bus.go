// Package bus fans committed campaign events out to in-process subscribers.
package bus

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/louisbranch/crowdshare/internal/services/crowdfund/domain/event"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Bus delivers every published event to every matching subscriber in
// publish order. Publish never waits on a subscriber: one whose buffer is
// full is dropped and its channel closed, so it can resync from the journal.
type Bus struct {
	buffer  int
	dropped atomic.Uint64

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*subscription
}

type subscription struct {
	campaignID string

	mu     sync.Mutex
	ch     chan event.Event
	closed bool
}

// offer delivers evt without blocking and reports false when the buffer is
// full.
func (s *subscription) offer(evt event.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- evt:
		return true
	default:
		return false
	}
}

func (s *subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// New returns a bus whose subscriptions buffer up to buffer events.
func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Bus{buffer: buffer, subs: make(map[uint64]*subscription)}
}

// Subscribe returns a channel of events for campaignID, or for every
// campaign when campaignID is empty. The channel closes on cancel or when
// the subscriber falls a full buffer behind.
func (b *Bus) Subscribe(campaignID string) (<-chan event.Event, func()) {
	sub := &subscription{
		campaignID: strings.TrimSpace(campaignID),
		ch:         make(chan event.Event, b.buffer),
	}
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = sub
	b.mu.Unlock()

	return sub.ch, func() { b.remove(id) }
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	sub, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		sub.close()
	}
}

// Publish delivers events to current subscribers. It returns only the
// context error; slow subscribers are dropped rather than waited on.
func (b *Bus) Publish(ctx context.Context, events []event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.subs))
	subs := make([]*subscription, 0, len(b.subs))
	for id, sub := range b.subs {
		ids = append(ids, id)
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	for i, sub := range subs {
		for _, evt := range events {
			if sub.campaignID != "" && sub.campaignID != evt.CampaignID {
				continue
			}
			if !sub.offer(evt) {
				b.dropped.Add(1)
				b.remove(ids[i])
				break
			}
		}
	}
	return nil
}

// Subscribers reports the number of open subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Dropped reports how many subscribers were closed for falling behind.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
