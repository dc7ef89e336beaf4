package client

import (
	"context"
	"sync"
)

// EventLogout tells peers that the shared refresh cookie was revoked
const EventLogout = "logout"

// Event is a message exchanged between sessions sharing one login
type Event struct {
	Type string `json:"type"`
	// Origin identifies the sending client so it can ignore its own message
	Origin string `json:"origin"`
}

// Broadcaster fans events out to every subscribed session.
// Delivery is best effort.
type Broadcaster interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, handler func(Event)) (unsubscribe func(), err error)
}

// LocalBroadcaster delivers events between clients in the same process
type LocalBroadcaster struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]func(Event)
}

// NewLocalBroadcaster creates an in-process broadcaster
func NewLocalBroadcaster() *LocalBroadcaster {
	return &LocalBroadcaster{handlers: make(map[int]func(Event))}
}

// Publish calls every handler synchronously
func (b *LocalBroadcaster) Publish(_ context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]func(Event), 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
	return nil
}

// Subscribe registers handler until unsubscribe is called
func (b *LocalBroadcaster) Subscribe(_ context.Context, handler func(Event)) (func(), error) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}, nil
}
