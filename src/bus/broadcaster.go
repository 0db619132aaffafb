package bus

import (
	"fmt"
	"sync"

	"ticker-monitor/src/logger"
)

// -----------------------------------------------------------------------------

// Handler receives one published value. A returned error is treated like a panic:
// the failure is logged and isolated from the other subscribers.
type Handler[T any] func(T) error

// -----------------------------------------------------------------------------

type subscription[T any] struct {
	id      uint64
	handler Handler[T]
	active  bool
}

// -----------------------------------------------------------------------------

// Broadcaster delivers every published value synchronously to all subscribers, in
// subscription order. The subscriber list is copy-on-write, so handlers may subscribe or
// unsubscribe while a value is being delivered: new subscribers start with the next value,
// removed subscribers receive nothing more. Nothing is buffered or replayed.
type Broadcaster[T any] struct {
	Name   string
	logger *logger.Logger

	// Fallback, when set, produces the value re-delivered to a subscriber whose handler failed.
	Fallback func(T) T

	mu     sync.Mutex
	subs   []*subscription[T]
	nextID uint64
	closed bool
}

// -----------------------------------------------------------------------------

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster[T any](name string, logger *logger.Logger) *Broadcaster[T] {
	return &Broadcaster[T]{
		Name:   name,
		logger: logger,
	}
}

// -----------------------------------------------------------------------------

// Subscribe registers h and returns the function that removes it.
// Subscribing to a closed broadcaster is a no-op.
func (b *Broadcaster[T]) Subscribe(h Handler[T]) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	b.nextID++
	sub := &subscription[T]{id: b.nextID, handler: h, active: true}

	next := make([]*subscription[T], 0, len(b.subs)+1)
	next = append(next, b.subs...)
	b.subs = append(next, sub)

	return func() { b.unsubscribe(sub.id) }
}

// -----------------------------------------------------------------------------

// Publish hands v to every active subscriber.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()

	for _, sub := range subs {
		if !b.isActive(sub) {
			continue
		}
		if err := b.deliver(sub, v); err != nil {
			b.logger.Warning("%s : subscriber %d failed: %v", b.Name, sub.id, err)
			if b.Fallback == nil || !b.isActive(sub) {
				continue
			}
			if err := b.deliver(sub, b.Fallback(v)); err != nil {
				b.logger.Error("%s : subscriber %d failed on fallback value: %v", b.Name, sub.id, err)
			}
		}
	}
}

// -----------------------------------------------------------------------------

// Close removes every subscriber; later Subscribe calls are ignored.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		sub.active = false
	}
	b.subs = nil
	b.closed = true
}

// -----------------------------------------------------------------------------

// SubscriberCount returns the number of registered subscribers.
func (b *Broadcaster[T]) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// -----------------------------------------------------------------------------

func (b *Broadcaster[T]) unsubscribe(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make([]*subscription[T], 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.id == id {
			sub.active = false
			continue
		}
		next = append(next, sub)
	}
	b.subs = next
}

// -----------------------------------------------------------------------------

func (b *Broadcaster[T]) isActive(sub *subscription[T]) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return sub.active
}

// -----------------------------------------------------------------------------

// deliver calls the handler, converting a panic into an error.
func (b *Broadcaster[T]) deliver(sub *subscription[T], v T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return sub.handler(v)
}
