// Package event implements the in-process event bus the modules use to
// signal each other: poller state changes, discovery runs, device CRUD.
package event

import (
	"context"
	"sync"

	"github.com/markus8006/plcfleet/pkg/plugin"
	"go.uber.org/zap"
)

var _ plugin.EventBus = (*Bus)(nil)

// Bus is an in-memory publish/subscribe bus. Publish runs handlers in
// the caller's goroutine; PublishAsync runs each handler in its own.
// A panicking handler is logged and never takes the publisher down.
type Bus struct {
	mu      sync.RWMutex
	byTopic map[string][]subscription
	allSubs []subscription
	nextID  uint64
	logger  *zap.Logger
}

type subscription struct {
	id      uint64
	handler plugin.EventHandler
}

// NewBus creates an empty bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		byTopic: make(map[string][]subscription),
		logger:  logger,
	}
}

// Publish delivers the event synchronously to topic and wildcard
// subscribers.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	for _, sub := range b.snapshot(event.Topic) {
		b.dispatch(ctx, sub.handler, event)
	}
	return nil
}

// PublishAsync delivers the event without blocking the publisher.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	for _, sub := range b.snapshot(event.Topic) {
		go b.dispatch(ctx, sub.handler, event)
	}
}

// snapshot copies the matching subscriptions so handlers run without
// holding the bus lock. Subscribing from inside a handler is safe.
func (b *Bus) snapshot(topic string) []subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := make([]subscription, 0, len(b.byTopic[topic])+len(b.allSubs))
	subs = append(subs, b.byTopic[topic]...)
	subs = append(subs, b.allSubs...)
	return subs
}

// Subscribe registers a handler for one topic and returns its
// unsubscribe function.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.byTopic[topic] = append(b.byTopic[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byTopic[topic] = remove(b.byTopic[topic], id)
	}
}

// SubscribeAll registers a handler for every topic and returns its
// unsubscribe function.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.allSubs = append(b.allSubs, subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.allSubs = remove(b.allSubs, id)
	}
}

func remove(subs []subscription, id uint64) []subscription {
	for i, s := range subs {
		if s.id == id {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}

func (b *Bus) dispatch(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}
