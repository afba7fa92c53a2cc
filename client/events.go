package client

import (
	"encoding/json"
	"sync"
)

// IncomingEvent is one server→client push, with the payload still
// undecoded.
type IncomingEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// EventHandler consumes pushed events.
type EventHandler func(IncomingEvent)

// EventBus fans incoming events out to registered handlers. Handlers
// are registered with Subscribe, which hands back a cancel function
// that deregisters exactly once no matter how often it is called.
type EventBus struct {
	mu       sync.Mutex
	handlers map[int]EventHandler
	nextID   int
}

// NewEventBus creates an empty EventBus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[int]EventHandler),
	}
}

// Subscribe registers a handler and returns its cancel function.
func (b *EventBus) Subscribe(fn EventHandler) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers the event to every registered handler.
func (b *EventBus) Publish(evt IncomingEvent) {
	b.mu.Lock()
	handlers := make([]EventHandler, 0, len(b.handlers))
	for _, fn := range b.handlers {
		handlers = append(handlers, fn)
	}
	b.mu.Unlock()

	for _, fn := range handlers {
		fn(evt)
	}
}
