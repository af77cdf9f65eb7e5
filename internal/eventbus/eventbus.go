// Package eventbus implements the in-process event distribution spec §5
// calls for: "a multi-producer, multi-consumer in-process channel with
// fan-out by event type", grounded on the subscriber-broadcast broker in
// cuemby-warren/pkg/events/events.go, generalized from one untyped Event
// struct to a closed set of concrete Go event types; subscribers select
// events by the string each type returns from Kind().
package eventbus

import (
	"sync"
)

// Event is implemented by every concrete event type the bus carries.
// Kind lets subscribers filter without a type assertion per event.
type Event interface {
	Kind() string
}

// Subscription is a buffered channel handed to one subscriber. Full
// subscriptions have events dropped rather than blocking the publisher,
// matching the broker's original "subscriber buffer full, skip" policy:
// a slow consumer must not stall certificate-store writes or the SSE
// monitor's dispatch loop.
type Subscription struct {
	ch     chan Event
	kinds  map[string]bool // nil means "every kind"
}

// C returns the channel to range over.
func (s *Subscription) C() <-chan Event { return s.ch }

func (s *Subscription) accepts(e Event) bool {
	if s.kinds == nil {
		return true
	}
	return s.kinds[e.Kind()]
}

const subscriberBuffer = 64

// Bus fans out published events to every subscriber whose filter accepts
// them. Zero value is not usable; construct with New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*Subscription]bool
	eventCh     chan Event
	stopCh      chan struct{}
	stopOnce    sync.Once
}

func New() *Bus {
	b := &Bus{
		subscribers: make(map[*Subscription]bool),
		eventCh:     make(chan Event, 256),
		stopCh:      make(chan struct{}),
	}
	go b.run()
	return b
}

// Stop halts the distribution loop. Safe to call more than once.
func (b *Bus) Stop() {
	b.stopOnce.Do(func() { close(b.stopCh) })
}

// Subscribe returns a subscription. With no kinds given it receives every
// event published on the bus; otherwise only events whose Kind() is
// listed.
func (b *Bus) Subscribe(kinds ...string) *Subscription {
	var filter map[string]bool
	if len(kinds) > 0 {
		filter = make(map[string]bool, len(kinds))
		for _, k := range kinds {
			filter[k] = true
		}
	}
	sub := &Subscription{ch: make(chan Event, subscriberBuffer), kinds: filter}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sub] = true
	return sub
}

func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[sub]; ok {
		delete(b.subscribers, sub)
		close(sub.ch)
	}
}

// Publish hands an event to the distribution loop. Never blocks past the
// bus being stopped.
func (b *Bus) Publish(e Event) {
	select {
	case b.eventCh <- e:
	case <-b.stopCh:
	}
}

func (b *Bus) run() {
	for {
		select {
		case e := <-b.eventCh:
			b.broadcast(e)
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bus) broadcast(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subscribers {
		if !sub.accepts(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
		}
	}
}
