package events

import (
	"sync"
)

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(event *Event)

// Bus is a fan-out publish/subscribe hub keyed by event type.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType]map[uint64]Handler
	nextID   uint64
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventType]map[uint64]Handler)}
}

// Subscribe registers handler for the given event types and returns a function
// that removes every registration made by this call.
func (b *Bus) Subscribe(handler Handler, types ...EventType) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, t := range types {
		if b.handlers[t] == nil {
			b.handlers[t] = make(map[uint64]Handler)
		}
		b.handlers[t][id] = handler
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, t := range types {
				delete(b.handlers[t], id)
			}
		})
	}
}

// Publish delivers the event to every handler subscribed to its type.
func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	subscribers := make([]Handler, 0, len(b.handlers[event.Type]))
	for _, h := range b.handlers[event.Type] {
		subscribers = append(subscribers, h)
	}
	b.mu.RUnlock()

	for _, h := range subscribers {
		h(event)
	}
}

// SubscriberCount returns the number of handlers registered for a type.
func (b *Bus) SubscriberCount(t EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t])
}
