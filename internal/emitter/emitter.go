// Package emitter implements a named-event emitter with explicit listener ids.
//
// Listeners are keyed by a generated id so wrapped listeners (Once, hub handlers) can be
// removed without holding the original function value.
package emitter

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// EventError is the event name that must have a listener before it is emitted.
const EventError = "error"

// ListenerID identifies one registered listener.
type ListenerID string

// Listener receives the payload passed to Emit.
type Listener func(payload any)

// UnhandledError is the panic value raised when EventError has no listener.
type UnhandledError struct {
	Payload any
}

func (e *UnhandledError) Error() string {
	if err, ok := e.Payload.(error); ok {
		return "unhandled error event: " + err.Error()
	}
	return fmt.Sprintf("unhandled error event: %v", e.Payload)
}

func (e *UnhandledError) Unwrap() error {
	err, _ := e.Payload.(error)
	return err
}

type entry struct {
	id   ListenerID
	fn   Listener
	once bool
}

// Emitter is safe for concurrent use. Listeners run on the emitting goroutine.
type Emitter struct {
	mu        sync.Mutex
	listeners map[string][]entry
}

// New returns an empty emitter.
func New() *Emitter {
	return &Emitter{listeners: make(map[string][]entry)}
}

// On registers a persistent listener.
func (e *Emitter) On(event string, fn Listener) ListenerID {
	return e.add(event, fn, false)
}

// Once registers a listener that is removed before its first invocation.
func (e *Emitter) Once(event string, fn Listener) ListenerID {
	return e.add(event, fn, true)
}

func (e *Emitter) add(event string, fn Listener, once bool) ListenerID {
	id := ListenerID(uuid.NewString())
	e.mu.Lock()
	e.listeners[event] = append(e.listeners[event], entry{id: id, fn: fn, once: once})
	e.mu.Unlock()
	return id
}

// Off removes one listener. It reports whether the listener was registered.
func (e *Emitter) Off(event string, id ListenerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.removeLocked(event, id)
}

func (e *Emitter) removeLocked(event string, id ListenerID) bool {
	list := e.listeners[event]
	for i, l := range list {
		if l.id != id {
			continue
		}
		next := make([]entry, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(e.listeners, event)
		} else {
			e.listeners[event] = next
		}
		return true
	}
	return false
}

// RemoveAllListeners drops every listener for event, or for every event when event is "".
func (e *Emitter) RemoveAllListeners(event string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if event == "" {
		e.listeners = make(map[string][]entry)
		return
	}
	delete(e.listeners, event)
}

// ListenerCount returns the number of listeners registered for event.
func (e *Emitter) ListenerCount(event string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[event])
}

// Emit invokes the listeners registered for event at call time, in registration order.
// Listeners removed during the emission still receive it. It reports whether any listener ran. Emitting EventError with no listener panics
// with an [*UnhandledError].
func (e *Emitter) Emit(event string, payload any) bool {
	e.mu.Lock()
	snapshot := append([]entry(nil), e.listeners[event]...)
	for _, l := range snapshot {
		if l.once {
			e.removeLocked(event, l.id)
		}
	}
	e.mu.Unlock()

	if len(snapshot) == 0 {
		if event == EventError {
			panic(&UnhandledError{Payload: payload})
		}
		return false
	}
	for _, l := range snapshot {
		l.fn(payload)
	}
	return true
}
