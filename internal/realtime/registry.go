package realtime

import (
	"sync"

	"github.com/google/uuid"
)

type registration[T any] struct {
	id uuid.UUID
	fn T
}

// registry keeps handlers in registration order. Removal is by id so the
// same function value can be registered more than once.
type registry[T any] struct {
	mu      sync.RWMutex
	entries []registration[T]
}

func (r *registry[T]) add(fn T) func() {
	id := uuid.New()
	r.mu.Lock()
	r.entries = append(r.entries, registration[T]{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { r.remove(id) })
	}
}

func (r *registry[T]) remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, entry := range r.entries {
		if entry.id == id {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return
		}
	}
}

func (r *registry[T]) snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(r.entries))
	for i, entry := range r.entries {
		out[i] = entry.fn
	}
	return out
}

func (r *registry[T]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
