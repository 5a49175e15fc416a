// Package notify fans committed storage changes out to in-process
// subscribers. It is the push half of the store's subscription model: every
// committed write is published once, and each live subscription observes it
// asynchronously.
package notify

import (
	"sync"

	"github.com/louisbranch/wyrmtable/internal/storage"
)

// subscriptionBuffer bounds how many undelivered changes a slow subscriber
// may accumulate before old changes are dropped. Subscribers re-query current
// state on every change, so a dropped change only delays convergence until
// the next one.
const subscriptionBuffer = 64

// Filter selects which changes a subscription observes. Zero values match
// everything.
type Filter struct {
	CampaignID  string
	Collections []storage.Collection
}

func (f Filter) matches(change storage.Change) bool {
	if f.CampaignID != "" && f.CampaignID != change.CampaignID {
		return false
	}
	if len(f.Collections) == 0 {
		return true
	}
	for _, collection := range f.Collections {
		if collection == change.Collection {
			return true
		}
	}
	return false
}

// Subscription is one live change feed. Close is idempotent and must be
// called exactly once per Subscribe on cleanup.
type Subscription struct {
	hub    *Hub
	id     uint64
	ch     chan storage.Change
	closed bool
	mu     sync.Mutex
}

// C returns the change feed channel. The channel is closed by Close.
func (s *Subscription) C() <-chan storage.Change {
	return s.ch
}

// Close tears the subscription down and releases its hub slot.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.hub.remove(s.id)
}

// Hub is an in-process change broadcaster implementing storage.Notifier.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber
}

type subscriber struct {
	filter Filter
	ch     chan storage.Change
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*subscriber)}
}

// Publish delivers a change to every matching subscription. Publish never
// blocks: when a subscriber's buffer is full its oldest pending change is
// dropped to make room.
func (h *Hub) Publish(change storage.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if !sub.filter.matches(change) {
			continue
		}
		for {
			select {
			case sub.ch <- change:
			default:
				select {
				case <-sub.ch:
				default:
				}
				continue
			}
			break
		}
	}
}

// Subscribe registers a change feed for the filter.
func (h *Hub) Subscribe(filter Filter) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	ch := make(chan storage.Change, subscriptionBuffer)
	h.subs[h.nextID] = &subscriber{filter: filter, ch: ch}
	return &Subscription{hub: h, id: h.nextID, ch: ch}
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
}

// Len reports the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
