package goGuardian

import (
	"context"
	"time"

	"github.com/MrEthical07/goGuardian/internal/async"
	"github.com/MrEthical07/goGuardian/internal/hub"
)

// stepSlot tracks the one running step of a kind. Starting a new step or abandoning the
// slot removes the hub listeners of the previous one and cancels its tasks; a finished
// step whose generation is no longer current emits nothing. Loop only.
type stepSlot struct {
	gen    uint64
	cancel context.CancelFunc
	hubs   []*hub.Hub
}

func (s *stepSlot) begin(parent context.Context) (context.Context, uint64) {
	s.abandon()
	s.gen++
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	return ctx, s.gen
}

func (s *stepSlot) abandon() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	for _, h := range s.hubs {
		h.RemoveAllListeners()
	}
}

func (s *stepSlot) current(gen uint64) bool {
	return s.cancel != nil && s.gen == gen
}

// end tears down a finished step. It reports false when the step had been abandoned.
func (s *stepSlot) end(gen uint64) bool {
	if !s.current(gen) {
		return false
	}
	s.abandon()
	return true
}

// awaitPayload attaches a one-shot listener to h and returns a task that resolves with
// the payload. It must be called on the loop so no emission slips in before the listener.
func awaitPayload[T any](h *hub.Hub) async.Task[T] {
	ch := make(chan T, 1)
	h.ListenOnce(func(payload any) {
		v, ok := payload.(T)
		if !ok {
			return
		}
		select {
		case ch <- v:
		default:
		}
	})
	return func(ctx context.Context) (T, error) {
		select {
		case v := <-ch:
			return v, nil
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// runStep runs the local (HTTP) task and the remote (event) task together and posts
// finish to the loop with both results, or with the first failure.
func runStep[T any](t *Transaction, ctx context.Context, local, remote async.Task[T], finish func(local, remote T, err error)) {
	start := time.Now()
	go func() {
		res, err := async.All(ctx, local, remote)
		t.metrics.Observe(MetricStepLatency, time.Since(start))
		t.post(func() {
			if err != nil {
				var zero T
				finish(zero, zero, err)
				return
			}
			finish(res[0], res[1], nil)
		})
	}()
}

func (t *Transaction) failStep(err error, accepted func(error)) {
	if isValidationError(err) {
		t.metrics.Inc(MetricValidationFailure)
	}
	if accepted != nil {
		accepted(err)
		return
	}
	t.emitError(err)
}
