package session

import "sync"

// IdentityHub is the identity-change notification mechanism shared by
// provider implementations. Publish delivers to every subscriber in
// subscription order and serializes concurrent publishers, so consumers see
// changes strictly in the order they were published. Subscribe fires the
// current identity (possibly nil) synchronously before returning, which gives
// every subscriber the guaranteed initial notification.
type IdentityHub struct {
	mu   sync.Mutex
	subs map[int]func(Identity)
	keys []int
	next int

	current Identity

	// dispatchMu serializes Publish calls end to end; mu alone only protects
	// the subscriber set and would allow interleaved deliveries.
	dispatchMu sync.Mutex
}

func NewIdentityHub() *IdentityHub {
	return &IdentityHub{subs: map[int]func(Identity){}}
}

// Current returns the most recently published identity, nil when signed out.
func (h *IdentityHub) Current() Identity {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}

// Subscribe registers fn and immediately delivers the current identity.
//
// fn runs under the dispatch lock. It must not call Publish, directly or
// through an operation that signs in or out, or it will deadlock; hand such
// work to another goroutine.
func (h *IdentityHub) Subscribe(fn func(Identity)) func() {
	h.dispatchMu.Lock()

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.keys = append(h.keys, id)
	current := h.current
	h.mu.Unlock()

	fn(current)
	h.dispatchMu.Unlock()

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs, id)
		for i, k := range h.keys {
			if k == id {
				h.keys = append(h.keys[:i], h.keys[i+1:]...)
				break
			}
		}
	}
}

// Publish records identity as current and notifies subscribers. A nil
// identity is the explicit "none" signal. Publish is not reentrant:
// subscribers must not publish from inside their callback.
func (h *IdentityHub) Publish(identity Identity) {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	h.mu.Lock()
	h.current = identity
	fns := make([]func(Identity), 0, len(h.keys))
	for _, k := range h.keys {
		if fn, ok := h.subs[k]; ok {
			fns = append(fns, fn)
		}
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}
