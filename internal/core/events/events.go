// Package events implements the synchronous event bus the scene uses to
// broadcast its per-frame update phases and load progress. Handlers run
// inline on the publishing goroutine in subscription order; the fixed
// phase ordering of Scene.Update depends on that.
package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/scenesync/scenesync/internal/core/variant"
)

// Type identifies an event kind by name hash.
type Type = variant.StringHash

// TypeOf returns the event type for a name.
func TypeOf(name string) Type { return variant.Hash(name) }

// Event types published by the scene core. Payload structs live next to
// their publishers in the scene package.
var (
	SceneUpdate              = TypeOf("SceneUpdate")
	SceneSubsystemUpdate     = TypeOf("SceneSubsystemUpdate")
	ScenePostUpdate          = TypeOf("ScenePostUpdate")
	AttributeAnimationUpdate = TypeOf("AttributeAnimationUpdate")
	NodeAdded                = TypeOf("NodeAdded")
	NodeRemoved              = TypeOf("NodeRemoved")
	ComponentAdded           = TypeOf("ComponentAdded")
	ComponentRemoved         = TypeOf("ComponentRemoved")
	AsyncLoadProgress        = TypeOf("AsyncLoadProgress")
	AsyncLoadFinished        = TypeOf("AsyncLoadFinished")
)

// Handler receives an event payload. Payload types are documented on the
// publishing side.
type Handler func(payload any)

type entry struct {
	id      uuid.UUID
	handler Handler
}

// Bus is a per-scene synchronous publish/subscribe hub. Subscribing and
// publishing are safe for concurrent use, but scene events are published
// from the scene's single logic goroutine.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]entry
}

func NewBus() *Bus {
	return &Bus{handlers: make(map[Type][]entry)}
}

// Subscription identifies one registered handler.
type Subscription struct {
	bus *Bus
	typ Type
	id  uuid.UUID
}

// Subscribe registers a handler for the event type. Handlers fire in
// subscription order.
func (b *Bus) Subscribe(t Type, h Handler) *Subscription {
	id := uuid.New()
	b.mu.Lock()
	b.handlers[t] = append(b.handlers[t], entry{id: id, handler: h})
	b.mu.Unlock()
	return &Subscription{bus: b, typ: t, id: id}
}

// Publish calls every handler registered for t, synchronously.
func (b *Bus) Publish(t Type, payload any) {
	b.mu.RLock()
	entries := b.handlers[t]
	handlers := make([]Handler, len(entries))
	for i, e := range entries {
		handlers[i] = e.handler
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(payload)
	}
}

// HasSubscribers reports whether any handler is registered for t. Publishers
// with expensive payloads check this first.
func (b *Bus) HasSubscribers(t Type) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[t]) > 0
}

// Cancel removes the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s == nil || s.bus == nil {
		return
	}
	s.bus.mu.Lock()
	entries := s.bus.handlers[s.typ]
	for i, e := range entries {
		if e.id == s.id {
			s.bus.handlers[s.typ] = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	s.bus.mu.Unlock()
	s.bus = nil
}
