// Package hub manages the listeners of one named event on a shared emitter.
//
// A hub has two tiers: explicit handlers, attached straight to the emitter, and a single
// default handler that only runs for emissions that find no explicit handler attached.
// Short-lived steps take exclusive ownership of an event by attaching explicit handlers;
// the owner's fallback resumes once they are removed.
package hub

import (
	"sync"

	"github.com/MrEthical07/goGuardian/internal/emitter"
)

// Hub binds to one event name on an emitter.
type Hub struct {
	emitter   *emitter.Emitter
	event     string
	forwarder emitter.ListenerID

	mu        sync.Mutex
	handlers  []emitter.ListenerID
	defaultFn emitter.Listener
}

// New attaches the hub's forwarding listener to em for event.
func New(em *emitter.Emitter, event string) *Hub {
	h := &Hub{emitter: em, event: event}
	h.forwarder = em.On(event, h.forward)
	return h
}

// Event returns the bound event name.
func (h *Hub) Event() string {
	return h.event
}

// forward is registered before any explicit handler, so it observes the handler count
// as it was when the emission started.
func (h *Hub) forward(payload any) {
	h.mu.Lock()
	n := len(h.handlers)
	fn := h.defaultFn
	h.mu.Unlock()

	if n == 0 && fn != nil {
		fn(payload)
	}
}

// Listen attaches a persistent explicit handler.
func (h *Hub) Listen(fn emitter.Listener) emitter.ListenerID {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.emitter.On(h.event, fn)
	h.handlers = append(h.handlers, id)
	return id
}

// ListenOnce attaches an explicit handler removed after its first invocation.
func (h *Hub) ListenOnce(fn emitter.Listener) emitter.ListenerID {
	h.mu.Lock()
	defer h.mu.Unlock()

	var id emitter.ListenerID
	id = h.emitter.Once(h.event, func(payload any) {
		h.mu.Lock()
		h.dropLocked(id)
		h.mu.Unlock()
		fn(payload)
	})
	h.handlers = append(h.handlers, id)
	return id
}

// DefaultHandler sets the fallback handler. Only the first call has an effect.
func (h *Hub) DefaultHandler(fn emitter.Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.defaultFn != nil {
		return
	}
	h.defaultFn = fn
}

// HandlerCount returns the number of attached explicit handlers.
func (h *Hub) HandlerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.handlers)
}

// RemoveAllListeners detaches every explicit handler. The default handler stays.
func (h *Hub) RemoveAllListeners() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range h.handlers {
		h.emitter.Off(h.event, id)
	}
	h.handlers = nil
}

// Close detaches explicit handlers and the forwarding listener.
func (h *Hub) Close() {
	h.RemoveAllListeners()
	h.emitter.Off(h.event, h.forwarder)
}

func (h *Hub) dropLocked(id emitter.ListenerID) {
	for i, existing := range h.handlers {
		if existing == id {
			h.handlers = append(h.handlers[:i], h.handlers[i+1:]...)
			return
		}
	}
}
