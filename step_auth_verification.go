package goGuardian

import (
	"context"

	"github.com/MrEthical07/goGuardian/internal/async"
)

// AuthVerificationStep verifies one authentication request.
//
// The outcome is emitted once as [EventAuthResponse] after both the service accepted the
// submitted code and the authoritative login:complete or login:rejected event arrived.
type AuthVerificationStep struct {
	tx       *Transaction
	strategy authStrategy
}

type authOutcome struct {
	recoveryCode string
	accepted     bool
	signature    string
}

// Method returns the authentication method.
func (s *AuthVerificationStep) Method() Method {
	return s.strategy.Method()
}

// Verify submits data. accepted, when non-nil, is called with nil as soon as the service
// accepts the submission, or with the error if verification fails; without it failures
// are emitted as [EventError].
func (s *AuthVerificationStep) Verify(data VerifyData, accepted func(error)) {
	t := s.tx
	if !t.post(func() { s.verify(data, accepted) }) && accepted != nil {
		go accepted(ErrTransactionClosed)
	}
}

func (s *AuthVerificationStep) verify(data VerifyData, accepted func(error)) {
	t := s.tx
	ctx, gen := t.authSlot.begin(t.ctx)

	complete := awaitPayload[loginCompletePayload](t.loginCompleteHub)
	rejected := awaitPayload[loginRejectedPayload](t.loginRejectedHub)

	local := func(ctx context.Context) (authOutcome, error) {
		res, err := s.strategy.Verify(ctx, data)
		if err != nil {
			return authOutcome{}, err
		}
		if accepted != nil {
			t.post(func() {
				if t.authSlot.current(gen) {
					accepted(nil)
				}
			})
		}
		return authOutcome{recoveryCode: res.RecoveryCode}, nil
	}
	remote := func(ctx context.Context) (authOutcome, error) {
		return async.Any[authOutcome](ctx,
			func(ctx context.Context) (authOutcome, error) {
				p, err := complete(ctx)
				return authOutcome{accepted: true, signature: p.Signature}, err
			},
			func(ctx context.Context) (authOutcome, error) {
				_, err := rejected(ctx)
				return authOutcome{accepted: false}, err
			},
		)
	}

	runStep[authOutcome](t, ctx, local, remote, func(l, r authOutcome, err error) {
		if !t.authSlot.end(gen) {
			return
		}
		if err != nil {
			t.metrics.Inc(MetricAuthFailure)
			t.record(AuditAuthFailure, s.Method(), false, err)
			t.failStep(err, accepted)
			return
		}
		t.emitAuthResponse(AuthResponsePayload{
			Accepted:     r.accepted,
			Signature:    r.signature,
			RecoveryCode: l.recoveryCode,
			Method:       s.Method(),
		})
	})
}
