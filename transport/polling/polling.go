// Package polling reports backend events by periodically requesting the transaction state.
//
// Each state transition is translated into the corresponding backend event exactly once:
// a confirmed enrollment becomes enrollment:confirmed, an accepted or rejected login
// becomes login:complete or login:rejected and ends polling.
package polling

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/MrEthical07/goGuardian/httpclient"
	"github.com/MrEthical07/goGuardian/transport"
)

// StatePath is the transaction-state endpoint.
const StatePath = "/api/transaction-state"

// DefaultInterval is used when Config.Interval is not positive.
const DefaultInterval = 5 * time.Second

// Poster is the subset of the HTTP client used for polling.
type Poster interface {
	Post(ctx context.Context, path, token string, data, out any) error
}

// Config controls polling cadence.
type Config struct {
	Interval time.Duration
}

type stateResponse struct {
	State      string           `json:"state"`
	TxID       string           `json:"tx_id"`
	Signature  string           `json:"signature"`
	Enrollment *stateEnrollment `json:"enrollment,omitempty"`
}

type stateEnrollment struct {
	Status        string          `json:"status"`
	Method        string          `json:"method,omitempty"`
	DeviceAccount json.RawMessage `json:"device_account,omitempty"`
}

// Transport polls the transaction state.
type Transport struct {
	client   Poster
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	enrollmentSent bool
}

// New returns a polling transport using client.
func New(client Poster, cfg Config) *Transport {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Transport{client: client, interval: cfg.Interval}
}

// Connect starts polling in the background until Close, ctx cancellation, a terminal
// login state, or a client error response.
func (t *Transport) Connect(ctx context.Context, token string, handler transport.Handler) error {
	if t.client == nil {
		return errors.New("polling: nil client")
	}
	if handler == nil {
		return errors.New("polling: nil handler")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return errors.New("polling: already connected")
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.run(ctx, token, handler)
	return nil
}

// Close stops polling and waits for the poller to exit.
func (t *Transport) Close() error {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	t.wg.Wait()
	return nil
}

func (t *Transport) run(ctx context.Context, token string, handler transport.Handler) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		if done := t.poll(ctx, token, handler); done {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// poll performs one request and reports whether polling is finished.
func (t *Transport) poll(ctx context.Context, token string, handler transport.Handler) bool {
	var state stateResponse
	if err := t.client.Post(ctx, StatePath, token, nil, &state); err != nil {
		if ctx.Err() != nil {
			return true
		}
		log.Print("goGuardian: transaction state poll failed")

		var respErr *httpclient.ResponseError
		if errors.As(err, &respErr) {
			handler(transport.NewErrorEvent(transport.ErrorPayload{
				Error:      http.StatusText(respErr.StatusCode),
				Message:    respErr.Message,
				ErrorCode:  respErr.ErrorCode,
				StatusCode: respErr.StatusCode,
			}))
			return respErr.StatusCode >= 400 && respErr.StatusCode < 500
		}
		handler(transport.NewErrorEvent(transport.ErrorPayload{Message: err.Error()}))
		return false
	}

	if state.Enrollment != nil && state.Enrollment.Status == "confirmed" && !t.enrollmentSent {
		t.enrollmentSent = true
		handler(event(transport.EventEnrollmentConfirmed, map[string]any{
			"device_account": state.Enrollment.DeviceAccount,
			"tx_id":          state.TxID,
			"method":         state.Enrollment.Method,
		}))
	}

	switch state.State {
	case "accepted":
		handler(event(transport.EventLoginComplete, map[string]any{
			"signature": state.Signature,
			"tx_id":     state.TxID,
		}))
		return true
	case "rejected":
		handler(event(transport.EventLoginRejected, map[string]any{
			"tx_id": state.TxID,
		}))
		return true
	}
	return false
}

func event(name string, payload map[string]any) transport.Event {
	raw, _ := json.Marshal(payload)
	return transport.Event{Name: name, Payload: raw}
}
