package bus

import "sync"

// Handler receives the payload published with an event.
type Handler func(payload any)

type subscription struct {
	handler Handler
	once    bool
}

// Bus is a named-event fan-out with per-name listener bookkeeping. Its
// lifecycle is tied to one engine instance; it is not a process-wide global.
//
// Handlers run synchronously on the publisher's goroutine, in subscription
// order. A one-shot handler is removed before it fires, so re-publishing the
// same name never reaches it twice.
type Bus struct {
	mu     sync.Mutex
	subs   map[string][]*subscription
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]*subscription)}
}

// Subscribe registers a handler for every publish of name. The returned
// cancel function removes the subscription; calling it more than once is
// harmless.
func (b *Bus) Subscribe(name string, h Handler) (cancel func()) {
	sub := &subscription{handler: h}
	b.add(name, sub)
	return func() { b.remove(name, sub) }
}

// Once registers a handler released after its first delivery.
func (b *Bus) Once(name string, h Handler) {
	b.add(name, &subscription{handler: h, once: true})
}

// Publish delivers payload to every handler registered for name and returns
// the number of handlers that received it. Publishing on a closed bus
// delivers nothing.
func (b *Bus) Publish(name string, payload any) int {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0
	}
	current := b.subs[name]
	targets := make([]*subscription, len(current))
	copy(targets, current)

	remaining := current[:0]
	for _, sub := range current {
		if !sub.once {
			remaining = append(remaining, sub)
		}
	}
	if len(remaining) == 0 {
		delete(b.subs, name)
	} else {
		b.subs[name] = remaining
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.handler(payload)
	}
	return len(targets)
}

// ListenerCount returns the number of handlers currently registered for name.
func (b *Bus) ListenerCount(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[name])
}

// Close drops every subscription. Pending waits whose completion event never
// arrived are released for collection here rather than leaking past engine
// shutdown.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[string][]*subscription)
}

func (b *Bus) add(name string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.subs[name] = append(b.subs[name], sub)
}

func (b *Bus) remove(name string, sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.subs[name]
	for i, s := range current {
		if s == sub {
			b.subs[name] = append(current[:i:i], current[i+1:]...)
			break
		}
	}
	if len(b.subs[name]) == 0 {
		delete(b.subs, name)
	}
}
