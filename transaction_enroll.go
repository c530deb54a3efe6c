package goGuardian

// Enroll starts enrolling the device with method. cb receives the confirmation step once
// the service accepted the enrollment request, or the first failed guard:
// [ErrAlreadyEnrolled], [ErrNoMethodAvailable], [*EnrollmentMethodDisabledError],
// [ErrMethodNotFound].
//
// A push enrollment is confirmed from the Guardian app, so its step starts confirming
// right away.
func (t *Transaction) Enroll(method Method, data EnrollData, cb func(*EnrollmentConfirmationStep, error)) {
	if cb == nil {
		cb = func(*EnrollmentConfirmationStep, error) {}
	}
	if !t.post(func() { t.enroll(method, data, cb) }) {
		go cb(nil, ErrTransactionClosed)
	}
}

func (t *Transaction) checkEnroll(method Method) (enrollmentStrategy, error) {
	t.mu.RLock()
	enrolled := len(t.enrollments) > 0
	available := t.availableEnrollmentMethods
	attempt := t.attempt
	t.mu.RUnlock()

	if enrolled {
		return nil, ErrAlreadyEnrolled
	}
	if len(available) == 0 {
		return nil, ErrNoMethodAvailable
	}
	if !containsMethod(available, method) {
		return nil, &EnrollmentMethodDisabledError{Method: method}
	}
	strategy, ok := t.enrollmentStrategies[method]
	if !ok {
		return nil, ErrMethodNotFound
	}
	if attempt == nil {
		return nil, ErrInvalidState
	}
	return strategy, nil
}

func (t *Transaction) enroll(method Method, data EnrollData, cb func(*EnrollmentConfirmationStep, error)) {
	strategy, err := t.checkEnroll(method)
	if err != nil {
		t.metrics.Inc(MetricEnrollmentFailure)
		t.record(AuditEnrollmentFailure, method, false, err)
		cb(nil, err)
		return
	}

	t.metrics.Inc(MetricEnrollmentStarted)
	t.record(AuditEnrollmentStarted, method, true, nil)
	attempt := t.EnrollmentAttempt()
	t.activateEnrollmentAttempt()

	ctx := t.ctx
	go func() {
		err := strategy.Enroll(ctx, data)
		t.post(func() {
			if err != nil {
				if isValidationError(err) {
					t.metrics.Inc(MetricValidationFailure)
				}
				t.metrics.Inc(MetricEnrollmentFailure)
				t.record(AuditEnrollmentFailure, method, false, err)
				t.dismissEnrollmentAttempt()
				cb(nil, err)
				return
			}

			step := &EnrollmentConfirmationStep{tx: t, strategy: strategy}
			t.mu.Lock()
			t.confirmStep = step
			t.mu.Unlock()

			cb(step, nil)
			if method == MethodPush && attempt.IsActive() {
				step.confirm(ConfirmData{}, nil)
			}
		})
	}()
}

// completeEnrollment records a confirmed device and emits enrollment-complete. The
// payload belongs to this transaction when its tx id matches the token, or when it has
// none and an enrollment attempt is active; only then is the attempt's recovery code
// handed out and no further authentication required. Loop only.
func (t *Transaction) completeEnrollment(p enrollmentConfirmedPayload) {
	attempt := t.EnrollmentAttempt()
	own := p.TxID != "" && p.TxID == t.token.TxID()
	if p.TxID == "" && attempt != nil && attempt.IsActive() {
		own = true
	}

	enrollment := p.DeviceAccount.enrollment()
	out := EnrollmentCompletePayload{
		Enrollment:   enrollment,
		AuthRequired: !own,
		Method:       p.Method,
	}
	if own && attempt != nil {
		out.RecoveryCode = attempt.RecoveryCode()
	}

	t.mu.Lock()
	t.enrollments = append(t.enrollments, enrollment)
	t.mu.Unlock()

	t.metrics.Inc(MetricEnrollmentComplete)
	t.emit(EventEnrollmentComplete, out)
	t.dismissEnrollmentAttempt()
}

// activateEnrollmentAttempt marks the attempt active and holds auth-response behind
// enrollment-complete until the attempt is dismissed. Loop only.
func (t *Transaction) activateEnrollmentAttempt() {
	attempt := t.EnrollmentAttempt()
	if attempt == nil || attempt.IsActive() || t.IsEnrolled() {
		return
	}
	attempt.setActive(true)
	t.seq.AddSequence(sequenceLocalEnrollment, EventEnrollmentComplete, EventAuthResponse)
}

// dismissEnrollmentAttempt deactivates the attempt and lifts the local-enrollment
// ordering, releasing anything it held. Loop only.
func (t *Transaction) dismissEnrollmentAttempt() {
	if attempt := t.EnrollmentAttempt(); attempt != nil {
		attempt.setActive(false)
	}
	t.seq.RemoveSequence(sequenceLocalEnrollment)
}
