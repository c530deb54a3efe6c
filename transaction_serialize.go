package goGuardian

// SerializedTransaction is the resumable state of a [Transaction]. Steps are not
// resumed; only their method is kept.
type SerializedTransaction struct {
	TransactionToken               string                       `json:"transaction_token"`
	BaseURL                        string                       `json:"base_url"`
	AvailableEnrollmentMethods     []Method                     `json:"available_enrollment_methods"`
	AvailableAuthenticationMethods []Method                     `json:"available_authentication_methods"`
	Enrollments                    []SerializedEnrollment       `json:"enrollments"`
	EnrollmentAttempt              *SerializedEnrollmentAttempt `json:"enrollment_attempt,omitempty"`
	AuthVerificationStep           *SerializedStep              `json:"auth_verification_step"`
	EnrollmentConfirmationStep     *SerializedStep              `json:"enrollment_confirmation_step"`
}

// SerializedEnrollmentAttempt is the persisted form of an [EnrollmentAttempt].
type SerializedEnrollmentAttempt struct {
	Data   EnrollmentAttemptData `json:"data"`
	Active bool                  `json:"active"`
}

// SerializedStep records the method of a step that was in progress.
type SerializedStep struct {
	Method Method `json:"method"`
}

// Serialize returns the resumable state.
func (t *Transaction) Serialize() SerializedTransaction {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := SerializedTransaction{
		TransactionToken:               t.token.Token(),
		BaseURL:                        t.baseURL,
		AvailableEnrollmentMethods:     cloneMethods(t.availableEnrollmentMethods),
		AvailableAuthenticationMethods: cloneMethods(t.availableAuthenticationMethods),
		Enrollments:                    make([]SerializedEnrollment, 0, len(t.enrollments)),
	}
	for _, e := range t.enrollments {
		s.Enrollments = append(s.Enrollments, e.Serialize())
	}
	if t.attempt != nil {
		s.EnrollmentAttempt = &SerializedEnrollmentAttempt{Data: t.attempt.Data(), Active: t.attempt.IsActive()}
	}
	if t.authStep != nil {
		s.AuthVerificationStep = &SerializedStep{Method: t.authStep.Method()}
	}
	if t.confirmStep != nil {
		s.EnrollmentConfirmationStep = &SerializedStep{Method: t.confirmStep.Method()}
	}
	return s
}

// state rebuilds construction input from s. A resumed attempt starts inactive; its
// confirmation is not resumed.
func (s SerializedTransaction) state() transactionState {
	st := transactionState{
		token:                          s.TransactionToken,
		baseURL:                        s.BaseURL,
		availableEnrollmentMethods:     s.AvailableEnrollmentMethods,
		availableAuthenticationMethods: s.AvailableAuthenticationMethods,
	}
	for _, e := range s.Enrollments {
		st.enrollments = append(st.enrollments, NewEnrollment(e))
	}
	if s.EnrollmentAttempt != nil {
		st.attempt = NewEnrollmentAttempt(s.EnrollmentAttempt.Data)
	}
	return st
}
