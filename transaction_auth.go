package goGuardian

// RequestAuth starts authenticating with enrollment. opts.Method defaults to the
// enrollment's first available method. cb receives the verification step once the
// service accepted the request, or the first failed guard: [ErrNotEnrolled],
// [ErrInvalidEnrollment], [ErrNoMethodAvailable], [*AuthMethodDisabledError],
// [ErrMethodNotFound].
//
// A new request abandons the previous verification step.
func (t *Transaction) RequestAuth(enrollment *Enrollment, opts AuthOptions, cb func(*AuthVerificationStep, error)) {
	if cb == nil {
		cb = func(*AuthVerificationStep, error) {}
	}
	if !t.post(func() { t.requestAuth(enrollment, opts, cb) }) {
		go cb(nil, ErrTransactionClosed)
	}
}

func (t *Transaction) checkAuth(enrollment *Enrollment, opts AuthOptions) (authStrategy, error) {
	t.mu.RLock()
	enrolled := len(t.enrollments) > 0
	available := t.availableAuthenticationMethods
	t.mu.RUnlock()

	if !enrolled {
		return nil, ErrNotEnrolled
	}
	if enrollment == nil || len(enrollment.availableMethods) == 0 {
		return nil, ErrInvalidEnrollment
	}
	method := opts.Method
	if method == "" {
		method = enrollment.availableMethods[0]
	}
	if len(available) == 0 {
		return nil, ErrNoMethodAvailable
	}
	if !containsMethod(available, method) {
		return nil, &AuthMethodDisabledError{Method: method}
	}
	strategy, ok := t.authStrategies[method]
	if !ok {
		return nil, ErrMethodNotFound
	}
	return strategy, nil
}

func (t *Transaction) requestAuth(enrollment *Enrollment, opts AuthOptions, cb func(*AuthVerificationStep, error)) {
	strategy, err := t.checkAuth(enrollment, opts)
	if err != nil {
		t.metrics.Inc(MetricAuthFailure)
		t.record(AuditAuthFailure, opts.Method, false, err)
		cb(nil, err)
		return
	}
	t.startAuth(strategy, cb)
}

// startAuth abandons the current verification step and requests a new challenge. Loop
// only.
func (t *Transaction) startAuth(strategy authStrategy, cb func(*AuthVerificationStep, error)) {
	t.authSlot.abandon()
	t.metrics.Inc(MetricAuthRequested)
	t.record(AuditAuthRequested, strategy.Method(), true, nil)

	ctx := t.ctx
	go func() {
		err := strategy.Request(ctx)
		t.post(func() {
			if err != nil {
				t.metrics.Inc(MetricAuthFailure)
				t.record(AuditAuthFailure, strategy.Method(), false, err)
				cb(nil, err)
				return
			}
			step := &AuthVerificationStep{tx: t, strategy: strategy}
			t.mu.Lock()
			t.authStep = step
			t.mu.Unlock()
			cb(step, nil)
		})
	}()
}

// Recover authenticates with a recovery code. On success [EventAuthResponse] carries the
// replacement recovery code. cb follows the accepted contract of
// [AuthVerificationStep.Verify]; it receives [ErrNotEnrolled] when no device is enrolled.
//
// Recovery is always offered to enrolled devices, whatever the available
// authentication methods.
func (t *Transaction) Recover(data RecoveryData, cb func(error)) {
	if cb == nil {
		cb = func(error) {}
	}
	if !t.post(func() { t.recover(data, cb) }) {
		go cb(ErrTransactionClosed)
	}
}

func (t *Transaction) recover(data RecoveryData, cb func(error)) {
	t.metrics.Inc(MetricRecoveryAttempt)
	t.record(AuditRecoveryAttempt, MethodRecovery, true, nil)
	if !t.IsEnrolled() {
		t.metrics.Inc(MetricAuthFailure)
		t.record(AuditAuthFailure, MethodRecovery, false, ErrNotEnrolled)
		cb(ErrNotEnrolled)
		return
	}
	t.startAuth(t.authStrategies[MethodRecovery], func(step *AuthVerificationStep, err error) {
		if err != nil {
			cb(err)
			return
		}
		step.verify(VerifyData{RecoveryCode: data.RecoveryCode}, cb)
	})
}
