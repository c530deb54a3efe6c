package goGuardian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrEthical07/goGuardian/internal/audit"
	"github.com/MrEthical07/goGuardian/store"
	"github.com/MrEthical07/goGuardian/transport"
	"github.com/MrEthical07/goGuardian/transport/polling"
	"github.com/MrEthical07/goGuardian/transport/socket"
)

const deviceAccountConfirmed = "confirmed"

// TransportFactory creates the event channel of one transaction.
type TransportFactory func(client HTTPClient) (transport.Transport, error)

// Guardian starts and resumes MFA transactions against one service.
//
// A Guardian is safe for concurrent use. Build it with [New].
type Guardian struct {
	config     Config
	http       HTTPClient
	transports TransportFactory
	metrics    *Metrics
	auditor    *audit.Dispatcher
	store      *store.Store
	now        func() time.Time

	mu     sync.Mutex
	active map[*Transaction]struct{}
	closed bool
}

type startFlowRequest struct {
	StateTransport TransportMode `json:"state_transport"`
}

type startFlowResponse struct {
	TransactionToken               string         `json:"transaction_token"`
	EnrollmentTxID                 string         `json:"enrollment_tx_id"`
	DeviceAccount                  *deviceAccount `json:"device_account"`
	AvailableEnrollmentMethods     []Method       `json:"available_enrollment_methods"`
	AvailableAuthenticationMethods []Method       `json:"available_authentication_methods"`
}

func defaultTransportFactory(cfg Config) TransportFactory {
	return func(client HTTPClient) (transport.Transport, error) {
		switch cfg.Transport {
		case TransportPolling:
			return polling.New(client, polling.Config{Interval: cfg.Polling.Interval}), nil
		case TransportManual:
			return transport.Manual{}, nil
		default:
			return socket.New(cfg.ServiceURL, socket.Config{HandshakeTimeout: cfg.Socket.HandshakeTimeout})
		}
	}
}

// Config returns the validated configuration.
func (g *Guardian) Config() Config {
	return g.config
}

// Start opens a transaction for requestToken, the token issued by the login page. It
// calls the start-flow endpoint and connects the configured transport.
func (g *Guardian) Start(ctx context.Context, requestToken string) (*Transaction, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	if requestToken == "" {
		return nil, &FieldRequiredError{Field: "requestToken"}
	}

	var resp startFlowResponse
	req := startFlowRequest{StateTransport: g.config.Transport}
	if err := g.http.Post(ctx, pathStartFlow, requestToken, req, &resp); err != nil {
		g.metrics.Inc(MetricBackendError)
		return nil, toGuardianError(err)
	}

	state := transactionState{
		token:                          resp.TransactionToken,
		baseURL:                        g.config.ServiceURL,
		availableEnrollmentMethods:     resp.AvailableEnrollmentMethods,
		availableAuthenticationMethods: resp.AvailableAuthenticationMethods,
	}
	if state.token == "" {
		state.token = requestToken
	}
	if da := resp.DeviceAccount; da != nil {
		if da.Status == deviceAccountConfirmed {
			state.enrollments = []*Enrollment{da.enrollment()}
		} else {
			state.attempt = NewEnrollmentAttempt(EnrollmentAttemptData{
				EnrollmentTxID: resp.EnrollmentTxID,
				OTPSecret:      da.OTPSecret,
				Issuer:         g.config.Issuer,
				RecoveryCode:   da.RecoveryCode,
				EnrollmentID:   da.ID,
				BaseURL:        g.config.ServiceURL,
				AccountLabel:   g.config.AccountLabel,
			})
		}
	}
	return g.open(ctx, state)
}

// Resume rebuilds a transaction from its serialized state. The token timer, hubs and
// transport are new; in-progress steps are not resumed.
func (g *Guardian) Resume(ctx context.Context, s SerializedTransaction) (*Transaction, error) {
	if err := g.checkOpen(); err != nil {
		return nil, err
	}
	if s.TransactionToken == "" {
		return nil, &FieldRequiredError{Field: "transactionToken"}
	}
	state := s.state()
	if state.baseURL == "" {
		state.baseURL = g.config.ServiceURL
	}
	return g.open(ctx, state)
}

// Save persists tx until its token expires. It requires a Redis client, see
// [Builder.WithRedis].
func (g *Guardian) Save(ctx context.Context, tx *Transaction) error {
	if g.store == nil {
		return ErrStoreNotConfigured
	}
	if tx.Token().IsExpired() {
		return ErrCredentialsExpired
	}
	payload, err := json.Marshal(tx.Serialize())
	if err != nil {
		return err
	}
	err = g.store.Save(ctx, tx.ID(), payload, tx.Token().RemainingTime())
	if errors.Is(err, store.ErrExpired) {
		return ErrCredentialsExpired
	}
	return err
}

// Load resumes the transaction saved under txID.
func (g *Guardian) Load(ctx context.Context, txID string) (*Transaction, error) {
	if g.store == nil {
		return nil, ErrStoreNotConfigured
	}
	payload, err := g.store.Load(ctx, txID)
	if err != nil {
		return nil, err
	}
	var s SerializedTransaction
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnexpectedInput, err)
	}
	return g.Resume(ctx, s)
}

// Forget deletes the saved transaction txID. It reports whether one existed.
func (g *Guardian) Forget(ctx context.Context, txID string) (bool, error) {
	if g.store == nil {
		return false, ErrStoreNotConfigured
	}
	return g.store.Delete(ctx, txID)
}

// MetricsSnapshot returns the current counters.
func (g *Guardian) MetricsSnapshot() MetricsSnapshot {
	return g.metrics.Snapshot()
}

// ActiveTransactions returns the number of open transactions.
func (g *Guardian) ActiveTransactions() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return uint64(len(g.active))
}

// Metrics returns the collector, for exporters.
func (g *Guardian) Metrics() *Metrics {
	return g.metrics
}

// AuditDropped returns the number of audit records dropped on a full buffer.
func (g *Guardian) AuditDropped() uint64 {
	return g.auditor.Dropped()
}

// Close closes every open transaction, then flushes the audit dispatcher. Later Start
// and Resume calls fail with [ErrTransactionClosed].
func (g *Guardian) Close() error {
	g.mu.Lock()
	g.closed = true
	active := make([]*Transaction, 0, len(g.active))
	for tx := range g.active {
		active = append(active, tx)
	}
	g.active = nil
	g.mu.Unlock()

	var errs []error
	for _, tx := range active {
		if err := tx.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	g.auditor.Close()
	return errors.Join(errs...)
}

func (g *Guardian) checkOpen() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrTransactionClosed
	}
	return nil
}

func (g *Guardian) open(ctx context.Context, state transactionState) (*Transaction, error) {
	tr, err := g.transports(g.http)
	if err != nil {
		return nil, err
	}
	tx, err := newTransaction(ctx, transactionDeps{
		http:      g.http,
		transport: tr,
		metrics:   g.metrics,
		audit:     g.auditor,
		now:       g.now,
	}, state)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		_ = tx.Close()
		return nil, ErrTransactionClosed
	}
	g.active[tx] = struct{}{}
	tx.onClose = g.release
	return tx, nil
}

func (g *Guardian) release(tx *Transaction) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, tx)
}
