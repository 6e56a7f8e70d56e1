// Package connectivity reports network reachability and notifies observers
// on every transition between reachable and unreachable.
package connectivity

import "sync"

// Monitor exposes the current reachability judgment and transition-edge
// notifications. Callbacks fire once per transition, never per poll.
type Monitor interface {
	// Reachable reports the current reachability judgment.
	Reachable() bool

	// Subscribe registers a callback invoked on every transition with the
	// new reachability value. The returned function unregisters it.
	Subscribe(fn func(reachable bool)) (unsubscribe func())
}

// hub is the shared observer bookkeeping for monitor implementations.
type hub struct {
	mu        sync.Mutex
	reachable bool
	nextID    int
	observers map[int]func(bool)
}

func newHub(initial bool) *hub {
	return &hub{
		reachable: initial,
		observers: make(map[int]func(bool)),
	}
}

func (h *hub) current() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reachable
}

func (h *hub) subscribe(fn func(bool)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.observers[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.observers, id)
		h.mu.Unlock()
	}
}

// set updates reachability and, on an actual edge, notifies every observer
// exactly once. Callbacks run outside the lock so an observer may
// re-subscribe or unsubscribe from within.
func (h *hub) set(reachable bool) {
	h.mu.Lock()
	if h.reachable == reachable {
		h.mu.Unlock()
		return
	}
	h.reachable = reachable
	fns := make([]func(bool), 0, len(h.observers))
	for _, fn := range h.observers {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(reachable)
	}
}

// ManualMonitor is a Monitor fed by an external reachability source (the
// platform's network callbacks, or a test).
type ManualMonitor struct {
	*hub
}

// NewManualMonitor creates a manual monitor with the given initial state.
func NewManualMonitor(initial bool) *ManualMonitor {
	return &ManualMonitor{hub: newHub(initial)}
}

// Reachable reports the current reachability judgment.
func (m *ManualMonitor) Reachable() bool { return m.current() }

// Subscribe registers a transition observer.
func (m *ManualMonitor) Subscribe(fn func(bool)) func() { return m.subscribe(fn) }

// SetReachable feeds a new reachability observation. Observers are notified
// only when the value actually changes.
func (m *ManualMonitor) SetReachable(reachable bool) { m.set(reachable) }
