package event

import (
	"log"
	"sync"
)

const defaultRecentSize = 256

// Subscription receives events from the bus until cancelled.
type Subscription struct {
	C      chan Event
	types  map[Type]bool
	cancel func()
}

// Cancel detaches the subscription from the bus and closes its channel.
func (s *Subscription) Cancel() { s.cancel() }

func (s *Subscription) wants(e Event) bool {
	if len(s.types) == 0 {
		return true
	}
	return s.types[e.GetType()]
}

// Bus fans events out to subscribers and keeps a bounded ring of recent
// events for late joiners. Publishing never blocks: a subscriber that cannot
// keep up has events dropped.
type Bus struct {
	mu      sync.Mutex
	subs    map[*Subscription]bool
	recent  []Event
	maxHeld int
}

// NewBus creates a bus holding up to size recent events. A size of zero uses
// a sensible default.
func NewBus(size int) *Bus {
	if size <= 0 {
		size = defaultRecentSize
	}
	return &Bus{
		subs:    make(map[*Subscription]bool),
		maxHeld: size,
	}
}

// Subscribe registers a subscriber. With no types given, every event is
// delivered; otherwise only events of the listed types.
func (b *Bus) Subscribe(buffer int, types ...Type) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscription{
		C:     make(chan Event, buffer),
		types: make(map[Type]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}

	b.mu.Lock()
	b.subs[sub] = true
	b.mu.Unlock()

	sub.cancel = func() {
		b.mu.Lock()
		if b.subs[sub] {
			delete(b.subs, sub)
			close(sub.C)
		}
		b.mu.Unlock()
	}
	return sub
}

// Publish delivers an event to every interested subscriber without blocking
// and records it in the recent ring.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.recent = append(b.recent, e)
	if len(b.recent) > b.maxHeld {
		b.recent = b.recent[len(b.recent)-b.maxHeld:]
	}

	for sub := range b.subs {
		if !sub.wants(e) {
			continue
		}
		select {
		case sub.C <- e:
		default:
			log.Printf("event bus: dropping %s event for slow subscriber", e.GetType())
		}
	}
}

// Recent returns up to limit of the most recent events, oldest first. A
// non-positive limit returns everything held.
func (b *Bus) Recent(limit int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	held := b.recent
	if limit > 0 && len(held) > limit {
		held = held[len(held)-limit:]
	}
	out := make([]Event, len(held))
	copy(out, held)
	return out
}
