package goGuardian

import "context"

// EnrollmentConfirmationStep confirms a pending enrollment.
//
// The enrollment is complete once the service accepted the confirmation and the
// enrollment:confirmed event arrived; it is then appended to the transaction and
// [EventEnrollmentComplete] is emitted once.
type EnrollmentConfirmationStep struct {
	tx       *Transaction
	strategy enrollmentStrategy
}

// Method returns the enrollment method.
func (s *EnrollmentConfirmationStep) Method() Method {
	return s.strategy.Method()
}

// URI returns the authenticator URI to show as a QR code. It is empty for sms.
func (s *EnrollmentConfirmationStep) URI() string {
	return s.strategy.URI()
}

// Data returns the values encoded in URI.
func (s *EnrollmentConfirmationStep) Data() EnrollmentURIData {
	return s.strategy.Data()
}

// Confirm submits data. accepted follows the same contract as in
// [AuthVerificationStep.Verify]. Push enrollments are confirmed automatically.
//
// A failed confirmation deactivates the enrollment attempt, so auth-response events are
// no longer held for it. Confirming again reactivates the attempt.
func (s *EnrollmentConfirmationStep) Confirm(data ConfirmData, accepted func(error)) {
	t := s.tx
	if !t.post(func() { s.confirm(data, accepted) }) && accepted != nil {
		go accepted(ErrTransactionClosed)
	}
}

func (s *EnrollmentConfirmationStep) confirm(data ConfirmData, accepted func(error)) {
	t := s.tx
	t.activateEnrollmentAttempt()
	ctx, gen := t.confirmSlot.begin(t.ctx)

	confirmed := awaitPayload[enrollmentConfirmedPayload](t.enrollmentConfirmedHub)

	local := func(ctx context.Context) (enrollmentConfirmedPayload, error) {
		if err := s.strategy.Confirm(ctx, data); err != nil {
			return enrollmentConfirmedPayload{}, err
		}
		if accepted != nil {
			t.post(func() {
				if t.confirmSlot.current(gen) {
					accepted(nil)
				}
			})
		}
		return enrollmentConfirmedPayload{}, nil
	}

	runStep[enrollmentConfirmedPayload](t, ctx, local, confirmed, func(_, r enrollmentConfirmedPayload, err error) {
		if !t.confirmSlot.end(gen) {
			return
		}
		if err != nil {
			t.metrics.Inc(MetricEnrollmentFailure)
			t.record(AuditEnrollmentFailure, s.Method(), false, err)
			t.dismissEnrollmentAttempt()
			t.failStep(err, accepted)
			return
		}
		if r.Method == "" {
			r.Method = s.Method()
		}
		t.completeEnrollment(r)
	})
}
