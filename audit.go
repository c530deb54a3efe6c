package goGuardian

import (
	"context"
	"errors"
	"io"

	"github.com/MrEthical07/goGuardian/internal/audit"
)

// Audit event types.
const (
	AuditEnrollmentStarted  = "enrollment_started"
	AuditEnrollmentComplete = "enrollment_complete"
	AuditEnrollmentFailure  = "enrollment_failure"
	AuditAuthRequested      = "auth_requested"
	AuditAuthAccepted       = "auth_accepted"
	AuditAuthRejected       = "auth_rejected"
	AuditAuthFailure        = "auth_failure"
	AuditRecoveryAttempt    = "recovery_attempt"
	AuditTokenExpired       = "token_expired"
	AuditTransactionError   = "transaction_error"
)

// AuditEvent is one audit record. Secrets such as codes, signatures and recovery codes
// are never recorded.
type AuditEvent = audit.Event

// AuditSink receives audit records from a single dispatcher goroutine.
type AuditSink = audit.Sink

// NoOpSink drops audit records.
type NoOpSink = audit.NoOpSink

// ChannelSink delivers audit records on a buffered channel.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes audit records as JSON lines.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink returns a sink with the given channel buffer.
func NewChannelSink(buffer int) *ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// AuditConfig controls the audit dispatcher.
type AuditConfig struct {
	Enabled    bool `env:"ENABLED"`
	BufferSize int  `env:"BUFFER_SIZE"`
	DropIfFull bool `env:"DROP_IF_FULL"`
}

func newAuditDispatcher(cfg AuditConfig, sink AuditSink) *audit.Dispatcher {
	return audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Enabled,
		BufferSize: cfg.BufferSize,
		DropIfFull: cfg.DropIfFull,
	}, sink)
}

// record writes an audit record. Loop only.
func (t *Transaction) record(eventType string, method Method, success bool, err error) {
	if t.auditor == nil {
		return
	}
	ev := AuditEvent{
		EventType: eventType,
		TxID:      t.ID(),
		Method:    string(method),
		Success:   success,
	}
	if err != nil {
		ev.Error = err.Error()
		var coded CodedError
		if errors.As(err, &coded) {
			ev.ErrorCode = coded.ErrorCode()
		}
	}
	t.auditor.Emit(context.Background(), ev)
}

// auditOutgoing records a released transaction event.
func (t *Transaction) auditOutgoing(event string, payload any) {
	switch event {
	case EventEnrollmentComplete:
		if p, ok := payload.(EnrollmentCompletePayload); ok {
			t.record(AuditEnrollmentComplete, p.Method, true, nil)
		}
	case EventAuthResponse:
		if p, ok := payload.(AuthResponsePayload); ok {
			if p.Accepted {
				t.record(AuditAuthAccepted, p.Method, true, nil)
			} else {
				t.record(AuditAuthRejected, p.Method, false, nil)
			}
		}
	case EventTimeout:
		t.record(AuditTokenExpired, "", false, ErrCredentialsExpired)
	case EventError:
		err, _ := payload.(error)
		t.record(AuditTransactionError, "", false, err)
	}
}
