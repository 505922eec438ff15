// Package bus provides the in-process publish/subscribe dispatcher that
// connects the pipeline components. It is constructed once per process and
// passed to components by dependency injection.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Handler consumes one published event payload. A handler returning an
// error (or panicking) is logged and isolated; it never stops the
// remaining handlers and never propagates to the publisher.
type Handler func(ctx context.Context, payload any) error

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches events by name to registered handlers. Within one Publish
// call handlers run synchronously in registration order; across events and
// across publishes there is no ordering guarantee.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscription
	logger zerolog.Logger
}

// New creates an empty bus.
func New(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[string][]subscription),
		logger: logger.With().Str("component", "bus").Logger(),
	}
}

// Subscribe registers a handler for the named event and returns an
// unsubscribe function. Unsubscribing twice is a no-op.
func (b *Bus) Subscribe(name string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[name] = append(b.subs[name], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.subs[name]
		for i, sub := range entries {
			if sub.id == id {
				b.subs[name] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Publish invokes every handler currently registered for name, in
// registration order, awaiting each before the next runs. Handler failures
// are logged and swallowed.
func (b *Bus) Publish(ctx context.Context, name string, payload any) {
	b.mu.Lock()
	entries := make([]subscription, len(b.subs[name]))
	copy(entries, b.subs[name])
	b.mu.Unlock()

	for _, sub := range entries {
		b.invoke(ctx, name, sub, payload)
	}
}

func (b *Bus) invoke(ctx context.Context, name string, sub subscription, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event", name).
				Uint64("subscription", sub.id).
				Str("panic", fmt.Sprint(r)).
				Msg("event handler panicked")
		}
	}()
	if err := sub.handler(ctx, payload); err != nil {
		b.logger.Error().
			Str("event", name).
			Uint64("subscription", sub.id).
			Err(err).
			Msg("event handler failed")
	}
}

// Clear removes all subscriptions. Used for shutdown and test isolation.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]subscription)
}
