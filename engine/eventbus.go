package engine

import (
	"sync"
	"time"
)

type EventType int

type SubscriberID int

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type subscriber struct {
	fn    func(Event)
	types map[EventType]bool
}

func (s subscriber) wants(t EventType) bool {
	return s.types == nil || s.types[t]
}

// EventBus fans events out to subscribers synchronously, in the emitting
// goroutine. Subscribers must not block.
type EventBus struct {
	mu     sync.RWMutex
	subs   map[SubscriberID]subscriber
	nextID SubscriberID
}

func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[SubscriberID]subscriber)}
}

// Subscribe registers fn for the given event types, or for every type when
// none are given.
func (eb *EventBus) Subscribe(fn func(Event), types ...EventType) SubscriberID {
	s := subscriber{fn: fn}
	if len(types) > 0 {
		s.types = make(map[EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.nextID++
	eb.subs[eb.nextID] = s
	return eb.nextID
}

func (eb *EventBus) Unsubscribe(id SubscriberID) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	delete(eb.subs, id)
}

func (eb *EventBus) Emit(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	eb.mu.RLock()
	matched := make([]func(Event), 0, len(eb.subs))
	for _, s := range eb.subs {
		if s.wants(evt.Type) {
			matched = append(matched, s.fn)
		}
	}
	eb.mu.RUnlock()

	for _, fn := range matched {
		fn(evt)
	}
}
