package runtime

import (
	"slices"
	"sync"
)

// Registry keeps a set of subscribers for a single stream of values.
// Subscribe hands back a cancel func, Publish notifies a snapshot of the
// subscribers so a callback may cancel itself or subscribe others safely.
type Registry[T any] struct {
	mu          sync.RWMutex
	nextID      uint64
	subscribers map[uint64]func(T)
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{subscribers: make(map[uint64]func(T))}
}

// Subscribe registers fn. The returned cancel func is idempotent.
func (r *Registry[T]) Subscribe(fn func(T)) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subscribers[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subscribers, id)
			r.mu.Unlock()
		})
	}
}

// Publish calls every subscriber registered when Publish started,
// in subscription order. Callbacks run outside the lock.
func (r *Registry[T]) Publish(value T) {
	for _, fn := range r.snapshot() {
		fn(value)
	}
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

func (r *Registry[T]) snapshot() []func(T) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]uint64, 0, len(r.subscribers))
	for id := range r.subscribers {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, r.subscribers[id])
	}
	return fns
}

// Hub routes values to registries keyed by topic.
// A topic is created on first subscription and removed with its last subscriber.
type Hub[T any] struct {
	mu     sync.Mutex
	topics map[string]*Registry[T]
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{topics: make(map[string]*Registry[T])}
}

func (h *Hub[T]) Subscribe(topic string, fn func(T)) func() {
	h.mu.Lock()
	registry, ok := h.topics[topic]
	if !ok {
		registry = NewRegistry[T]()
		h.topics[topic] = registry
	}
	cancel := registry.Subscribe(fn)
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		cancel()
		if current, ok := h.topics[topic]; ok && current == registry && registry.Len() == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub[T]) Publish(topic string, value T) {
	h.mu.Lock()
	registry, ok := h.topics[topic]
	h.mu.Unlock()
	if !ok {
		return
	}
	registry.Publish(value)
}

// Topics returns the number of topics with at least one subscriber.
func (h *Hub[T]) Topics() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.topics)
}
