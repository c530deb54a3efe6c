// Package transport defines the out-of-band channel that reports backend completion
// events for a transaction.
//
// Implementations live in sub-packages: polling (periodic transaction-state requests) and
// socket (a websocket stream). [Manual] connects nowhere; callers inject events
// themselves.
package transport

import (
	"context"
	"encoding/json"
)

// Backend event names.
const (
	EventLoginComplete       = "login:complete"
	EventLoginRejected       = "login:rejected"
	EventEnrollmentConfirmed = "enrollment:confirmed"
	EventError               = "error"
)

// Event is one backend event. Payload is the JSON object the service sent, with
// snake_case keys.
type Event struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"data,omitempty"`
}

// Handler receives events. Implementations may call it from any goroutine, but never
// concurrently for the same connection.
type Handler func(Event)

// Transport is a connectable backend event channel.
type Transport interface {
	Connect(ctx context.Context, token string, handler Handler) error
	Close() error
}

// ErrorPayload is the body of an EventError event.
type ErrorPayload struct {
	Error      string `json:"error,omitempty"`
	Message    string `json:"message,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// NewErrorEvent builds an EventError event.
func NewErrorEvent(p ErrorPayload) Event {
	raw, _ := json.Marshal(p)
	return Event{Name: EventError, Payload: raw}
}

// Manual is a transport that never produces events.
type Manual struct{}

// Connect does nothing.
func (Manual) Connect(context.Context, string, Handler) error { return nil }

// Close does nothing.
func (Manual) Close() error { return nil }
