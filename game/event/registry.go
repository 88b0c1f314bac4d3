// Package event provides ordered observer registries used by the world model
// to publish change notifications to any number of independent subscribers.
package event

import "sync"

// Handle identifies one subscription. The zero Handle is never issued.
type Handle uint64

type entry[T any] struct {
	handle Handle
	fn     func(T)
}

// Registry is an ordered list of subscribers for events carrying a T.
// The zero value is ready to use.
type Registry[T any] struct {
	mu   sync.RWMutex
	next Handle
	subs []entry[T]
}

// Subscribe appends fn to the subscriber list and returns its handle.
// Subscribers are called in subscription order.
func (r *Registry[T]) Subscribe(fn func(T)) Handle {
	if fn == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.subs = append(r.subs, entry[T]{handle: r.next, fn: fn})
	return r.next
}

// Unsubscribe removes the subscription identified by h. It reports whether a
// subscription was removed; unknown, zero and already removed handles are no-ops.
func (r *Registry[T]) Unsubscribe(h Handle) bool {
	if h == 0 {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.subs {
		if e.handle == h {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return true
		}
	}
	return false
}

// Emit calls every subscriber with v. The subscriber list is copied first, so
// a subscriber may unsubscribe itself (or others) while being called.
func (r *Registry[T]) Emit(v T) {
	r.mu.RLock()
	if len(r.subs) == 0 {
		r.mu.RUnlock()
		return
	}
	subs := make([]entry[T], len(r.subs))
	copy(subs, r.subs)
	r.mu.RUnlock()

	for _, e := range subs {
		e.fn(v)
	}
}

// Len returns the number of active subscriptions.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Clear drops every subscription.
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	r.subs = nil
	r.mu.Unlock()
}
