package goGuardian

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/MrEthical07/goGuardian/internal/audit"
	"github.com/MrEthical07/goGuardian/internal/emitter"
	"github.com/MrEthical07/goGuardian/internal/hub"
	"github.com/MrEthical07/goGuardian/internal/loop"
	"github.com/MrEthical07/goGuardian/internal/sequencer"
	"github.com/MrEthical07/goGuardian/token"
	"github.com/MrEthical07/goGuardian/transport"
)

// sequenceLocalEnrollment keeps enrollment-complete ahead of auth-response while an
// enrollment attempt is active.
const sequenceLocalEnrollment = "local-enrollment"

// ListenerID identifies a listener registered with [Transaction.On] or [Transaction.Once].
type ListenerID = emitter.ListenerID

// Transaction is one MFA flow: enrollment of a device or authentication of an enrolled
// one.
//
// All state changes, hub and sequencer operations and listener callbacks run on the
// transaction's own loop goroutine. Public methods post work to that loop and return
// immediately; their callbacks always run on a later turn. Getters are safe from any
// goroutine.
type Transaction struct {
	loop      *loop.Loop
	token     *token.Token
	baseURL   string
	http      HTTPClient
	transport transport.Transport
	metrics   *Metrics
	auditor   *audit.Dispatcher

	ctx    context.Context
	cancel context.CancelFunc

	backend *emitter.Emitter
	out     *emitter.Emitter
	seq     *sequencer.Sequencer

	loginCompleteHub       *hub.Hub
	loginRejectedHub       *hub.Hub
	enrollmentConfirmedHub *hub.Hub
	backendErrorHub        *hub.Hub

	enrollmentStrategies map[Method]enrollmentStrategy
	authStrategies       map[Method]authStrategy

	// loop-owned
	authSlot    stepSlot
	confirmSlot stepSlot

	mu                             sync.RWMutex
	availableEnrollmentMethods     []Method
	availableAuthenticationMethods []Method
	enrollments                    []*Enrollment
	attempt                        *EnrollmentAttempt
	authStep                       *AuthVerificationStep
	confirmStep                    *EnrollmentConfirmationStep
	closed                         bool

	closeOnce sync.Once
	onClose   func(*Transaction)
}

type transactionDeps struct {
	http      HTTPClient
	transport transport.Transport
	metrics   *Metrics
	audit     *audit.Dispatcher
	now       func() time.Time
}

type transactionState struct {
	token                          string
	baseURL                        string
	availableEnrollmentMethods     []Method
	availableAuthenticationMethods []Method
	enrollments                    []*Enrollment
	attempt                        *EnrollmentAttempt
}

func newTransaction(ctx context.Context, deps transactionDeps, state transactionState) (*Transaction, error) {
	if deps.http == nil {
		return nil, errors.New("goGuardian: nil http client")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	t := &Transaction{
		loop:                           loop.New(),
		baseURL:                        state.baseURL,
		http:                           deps.http,
		transport:                      deps.transport,
		metrics:                        deps.metrics,
		auditor:                        deps.audit,
		backend:                        emitter.New(),
		out:                            emitter.New(),
		seq:                            sequencer.New(),
		availableEnrollmentMethods:     cloneMethods(state.availableEnrollmentMethods),
		availableAuthenticationMethods: cloneMethods(state.availableAuthenticationMethods),
		enrollments:                    append([]*Enrollment(nil), state.enrollments...),
		attempt:                        state.attempt,
	}
	t.ctx, t.cancel = context.WithCancel(context.WithoutCancel(ctx))

	opts := []token.Option{token.WithExpiryHandler(t.tokenExpired)}
	if deps.now != nil {
		opts = append(opts, token.WithNow(deps.now))
	}
	tok, err := token.New(state.token, opts...)
	if err != nil {
		t.cancel()
		t.loop.Close()
		return nil, ErrInvalidToken
	}
	t.token = tok

	t.seq.Pipe(sequencer.SinkFunc(t.deliver))

	t.loginCompleteHub = hub.New(t.backend, transport.EventLoginComplete)
	t.loginRejectedHub = hub.New(t.backend, transport.EventLoginRejected)
	t.enrollmentConfirmedHub = hub.New(t.backend, transport.EventEnrollmentConfirmed)
	t.backendErrorHub = hub.New(t.backend, transport.EventError)
	t.authSlot.hubs = []*hub.Hub{t.loginCompleteHub, t.loginRejectedHub}
	t.confirmSlot.hubs = []*hub.Hub{t.enrollmentConfirmedHub}
	t.installDefaultHandlers()

	sd := strategyDeps{http: t.http, token: t.token.Token, attempt: t.EnrollmentAttempt}
	t.enrollmentStrategies = newEnrollmentStrategies(sd)
	t.authStrategies = newAuthStrategies(sd)

	if t.transport != nil {
		if err := t.transport.Connect(t.ctx, t.token.Token(), t.HandleEvent); err != nil {
			t.Close()
			return nil, toGuardianError(err)
		}
	}
	return t, nil
}

// ID returns the transaction id carried by the token.
func (t *Transaction) ID() string {
	return t.token.TxID()
}

// Token returns the decoded transaction token.
func (t *Transaction) Token() *token.Token {
	return t.token
}

// BaseURL returns the service URL the transaction talks to.
func (t *Transaction) BaseURL() string {
	return t.baseURL
}

// Enrollments returns the confirmed enrollments.
func (t *Transaction) Enrollments() []*Enrollment {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Enrollment(nil), t.enrollments...)
}

// IsEnrolled reports whether at least one enrollment exists.
func (t *Transaction) IsEnrolled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.enrollments) > 0
}

// EnrollmentAttempt returns the pending enrollment attempt, or nil.
func (t *Transaction) EnrollmentAttempt() *EnrollmentAttempt {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.attempt
}

// AvailableEnrollmentMethods returns the methods a device may enroll with.
func (t *Transaction) AvailableEnrollmentMethods() []Method {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneMethods(t.availableEnrollmentMethods)
}

// AvailableAuthenticationMethods returns the methods an enrolled device may authenticate with.
func (t *Transaction) AvailableAuthenticationMethods() []Method {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneMethods(t.availableAuthenticationMethods)
}

// On registers fn for a transaction event: [EventEnrollmentComplete],
// [EventAuthResponse], [EventTimeout] or [EventError].
//
// An EventError emitted with no listener panics on the transaction goroutine.
func (t *Transaction) On(event string, fn func(payload any)) ListenerID {
	return t.out.On(event, fn)
}

// Once registers fn for the next emission of event only.
func (t *Transaction) Once(event string, fn func(payload any)) ListenerID {
	return t.out.Once(event, fn)
}

// Off removes a listener. It reports whether the listener was registered.
func (t *Transaction) Off(event string, id ListenerID) bool {
	return t.out.Off(event, id)
}

// Close detaches every listener, stops the token timer, closes the transport and stops
// the loop. In-flight steps are abandoned and never emit.
func (t *Transaction) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.mu.Unlock()

		t.cancel()
		t.token.Stop()
		if t.transport != nil {
			err = t.transport.Close()
		}
		t.loop.Post(func() {
			t.authSlot.abandon()
			t.confirmSlot.abandon()
			for _, h := range []*hub.Hub{t.loginCompleteHub, t.loginRejectedHub, t.enrollmentConfirmedHub, t.backendErrorHub} {
				h.Close()
			}
		})
		t.loop.Close()
		if t.onClose != nil {
			t.onClose(t)
		}
	})
	return err
}

func (t *Transaction) isClosed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// post schedules fn on the transaction loop. It reports false after Close.
func (t *Transaction) post(fn func()) bool {
	if t.isClosed() {
		return false
	}
	return t.loop.Post(fn)
}

// emit sends a transaction event through the sequencer. Loop only.
func (t *Transaction) emit(event string, payload any) {
	t.seq.Emit(event, payload)
}

// deliver is the sequencer sink. Released events reach user listeners on a later turn,
// so an unhandled error never unwinds through the sequencer.
func (t *Transaction) deliver(event string, payload any) {
	t.loop.Post(func() {
		if t.isClosed() {
			return
		}
		t.auditOutgoing(event, payload)
		t.out.Emit(event, payload)
	})
}

func (t *Transaction) emitError(err error) {
	if err == nil {
		return
	}
	t.emit(EventError, err)
}

func (t *Transaction) emitAuthResponse(p AuthResponsePayload) {
	if p.Accepted {
		t.metrics.Inc(MetricAuthAccepted)
	} else {
		t.metrics.Inc(MetricAuthRejected)
	}
	t.emit(EventAuthResponse, p)
}

func (t *Transaction) tokenExpired() {
	t.post(func() {
		log.Print("goGuardian: transaction token expired")
		t.metrics.Inc(MetricTokenExpired)
		t.emit(EventTimeout, nil)
	})
}
