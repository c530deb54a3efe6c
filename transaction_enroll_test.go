package goGuardian

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrEthical07/goGuardian/transport"
)

func pendingAttempt() EnrollmentAttemptData {
	return EnrollmentAttemptData{
		EnrollmentTxID: "enroll_tx",
		OTPSecret:      "GEZDGNBVGY3TQOJQ",
		Issuer:         Issuer{Name: "tenant", Label: "Tenant"},
		RecoveryCode:   "ABCDEFGHIJKLMNOPQRSTUVWX",
		EnrollmentID:   "dev_1",
		BaseURL:        "https://tenant.guardian.example",
		AccountLabel:   "user@example.com",
	}
}

func confirmedEvent(t *testing.T, txID string) transport.Event {
	return backendEvent(t, transport.EventEnrollmentConfirmed, map[string]any{
		"tx_id": txID,
		"device_account": map[string]any{
			"available_methods": []string{"push", "otp"},
			"name":              "Test",
		},
	})
}

func TestEnrollPushEventBeforeAck(t *testing.T) {
	tx := newTestTransaction(t, withEnrollmentMethods(MethodPush), withAttempt(pendingAttempt()))
	complete := collect(tx.Transaction, EventEnrollmentComplete)

	res := enroll(tx, MethodPush, EnrollData{})
	tx.HandleEvent(confirmedEvent(t, tx.ID()))

	got := waitFor[EnrollmentCompletePayload](t, complete, "enrollment-complete")
	if got.AuthRequired {
		t.Fatal("expected AuthRequired=false for this transaction's enrollment")
	}
	if got.RecoveryCode != pendingAttempt().RecoveryCode {
		t.Fatalf("expected attempt recovery code, got %q", got.RecoveryCode)
	}
	if got.Enrollment.Name() != "Test" {
		t.Fatalf("unexpected enrollment name %q", got.Enrollment.Name())
	}

	r := waitEnroll(t, res)
	if r.err != nil || r.step == nil {
		t.Fatalf("expected accepted push enrollment, got %v", r.err)
	}
	expectNone(t, complete, 200*time.Millisecond, "second enrollment-complete")

	if n := len(tx.Enrollments()); n != 1 {
		t.Fatalf("expected 1 enrollment, got %d", n)
	}
	if !tx.IsEnrolled() {
		t.Fatal("expected transaction to be enrolled")
	}
	if tx.EnrollmentAttempt().IsActive() {
		t.Fatal("expected attempt to be dismissed")
	}
}

func TestEnrollPushAckBeforeEventWithoutTxID(t *testing.T) {
	tx := newTestTransaction(t, withEnrollmentMethods(MethodPush), withAttempt(pendingAttempt()))
	complete := collect(tx.Transaction, EventEnrollmentComplete)

	r := waitEnroll(t, enroll(tx, MethodPush, EnrollData{}))
	if r.err != nil {
		t.Fatalf("Enroll failed: %v", r.err)
	}
	if !tx.EnrollmentAttempt().IsActive() {
		t.Fatal("expected active attempt while push confirmation is pending")
	}

	tx.HandleEvent(confirmedEvent(t, ""))

	got := waitFor[EnrollmentCompletePayload](t, complete, "enrollment-complete")
	if got.AuthRequired {
		t.Fatal("expected a payload without tx id to belong to the active attempt")
	}
	if got.Method != MethodPush {
		t.Fatalf("expected push method, got %q", got.Method)
	}
	expectNone(t, complete, 200*time.Millisecond, "second enrollment-complete")
}

func TestEnrollmentConfirmedForOtherTransactionRequiresAuth(t *testing.T) {
	tx := newTestTransaction(t, withEnrollmentMethods(MethodPush), withAttempt(pendingAttempt()))
	complete := collect(tx.Transaction, EventEnrollmentComplete)

	tx.HandleEvent(confirmedEvent(t, "tx_other"))

	got := waitFor[EnrollmentCompletePayload](t, complete, "enrollment-complete")
	if !got.AuthRequired {
		t.Fatal("expected AuthRequired=true for a foreign transaction")
	}
	if got.RecoveryCode != "" {
		t.Fatalf("expected no recovery code, got %q", got.RecoveryCode)
	}
	if !tx.IsEnrolled() {
		t.Fatal("expected the enrollment to be recorded")
	}
}

func TestEnrollGuards(t *testing.T) {
	cases := []struct {
		name   string
		opts   []txOption
		method Method
		want   error
	}{
		{"already enrolled", []txOption{withEnrollmentMethods(MethodSMS), withEnrollment(MethodSMS)}, MethodSMS, ErrAlreadyEnrolled},
		{"no method", []txOption{withAttempt(pendingAttempt())}, MethodSMS, ErrNoMethodAvailable},
		{"disabled", []txOption{withEnrollmentMethods(MethodPush), withAttempt(pendingAttempt())}, MethodSMS, ErrEnrollmentMethodDisabled},
		{"unknown", []txOption{withEnrollmentMethods(Method("email")), withAttempt(pendingAttempt())}, Method("email"), ErrMethodNotFound},
		{"no attempt", []txOption{withEnrollmentMethods(MethodOTP)}, MethodOTP, ErrInvalidState},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tx := newTestTransaction(t, tc.opts...)
			r := waitEnroll(t, enroll(tx, tc.method, EnrollData{PhoneNumber: "+15555550100"}))
			if !errors.Is(r.err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, r.err)
			}
			if tx.http.callCount() != 0 {
				t.Fatalf("expected no HTTP call, got %d", tx.http.callCount())
			}
		})
	}
}

func TestEnrollDisabledMethodReportsMethod(t *testing.T) {
	tx := newTestTransaction(t, withEnrollmentMethods(MethodPush), withAttempt(pendingAttempt()))

	r := waitEnroll(t, enroll(tx, MethodSMS, EnrollData{}))
	var disabled *EnrollmentMethodDisabledError
	if !errors.As(r.err, &disabled) {
		t.Fatalf("expected EnrollmentMethodDisabledError, got %v", r.err)
	}
	if disabled.Method != MethodSMS {
		t.Fatalf("expected method sms, got %q", disabled.Method)
	}
}

func TestEnrollCallbackIsAsync(t *testing.T) {
	tx := newTestTransaction(t)

	returned := make(chan struct{})
	called := make(chan bool, 1)
	tx.Enroll(MethodSMS, EnrollData{}, func(*EnrollmentConfirmationStep, error) {
		select {
		case <-returned:
			called <- true
		default:
			called <- false
		}
	})
	close(returned)

	select {
	case afterReturn := <-called:
		if !afterReturn {
			t.Fatal("callback ran before Enroll returned")
		}
	case <-time.After(waitTimeout):
		t.Fatal("callback never ran")
	}
}

func TestEnrollSMSMissingPhoneDismissesAttempt(t *testing.T) {
	tx := newTestTransaction(t, withEnrollmentMethods(MethodSMS), withAttempt(pendingAttempt()))

	r := waitEnroll(t, enroll(tx, MethodSMS, EnrollData{}))
	var required *FieldRequiredError
	if !errors.As(r.err, &required) || required.Field != "phoneNumber" {
		t.Fatalf("expected phoneNumber required, got %v", r.err)
	}
	if tx.EnrollmentAttempt().IsActive() {
		t.Fatal("expected attempt to be dismissed after failure")
	}
	if tx.http.callCount() != 0 {
		t.Fatalf("expected no HTTP call, got %d", tx.http.callCount())
	}
}

func TestEnrollSMSConfirmFlow(t *testing.T) {
	tx := newTestTransaction(t, withEnrollmentMethods(MethodSMS, MethodPush), withAttempt(pendingAttempt()))
	complete := collect(tx.Transaction, EventEnrollmentComplete)

	r := waitEnroll(t, enroll(tx, MethodSMS, EnrollData{PhoneNumber: "+15555550100"}))
	if r.err != nil {
		t.Fatalf("Enroll failed: %v", r.err)
	}
	calls := tx.http.callsTo("/api/device-accounts/dev_1/sms-enroll")
	if len(calls) != 1 {
		t.Fatalf("expected one sms-enroll call, got %d", len(calls))
	}
	if string(calls[0].body) != `{"phone_number":"+15555550100"}` {
		t.Fatalf("unexpected sms-enroll body %s", calls[0].body)
	}
	if r.step.URI() != "" {
		t.Fatalf("expected empty sms URI, got %q", r.step.URI())
	}

	accepted, acceptedCh := errCallback()
	r.step.Confirm(ConfirmData{OTPCode: "123456"}, accepted)
	if err := waitErr(t, acceptedCh, "accepted"); err != nil {
		t.Fatalf("expected accepted, got %v", err)
	}
	verify := tx.http.callsTo(pathVerifyOTP)
	if len(verify) != 1 || string(verify[0].body) != `{"type":"manual_input","code":"123456"}` {
		t.Fatalf("unexpected verify-otp calls %+v", verify)
	}
	expectNone(t, complete, 100*time.Millisecond, "enrollment-complete before the backend event")

	tx.HandleEvent(backendEvent(t, transport.EventEnrollmentConfirmed, map[string]any{
		"tx_id":  tx.ID(),
		"method": "sms",
		"device_account": map[string]any{
			"available_methods": []string{"sms"},
			"phone_number":      "XXXXXXXX0100",
		},
	}))

	got := waitFor[EnrollmentCompletePayload](t, complete, "enrollment-complete")
	if got.Method != MethodSMS || got.Enrollment.PhoneNumber() != "XXXXXXXX0100" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestEnrollConfirmInvalidOTPDeliversError(t *testing.T) {
	tx := newTestTransaction(t, withEnrollmentMethods(MethodOTP), withAttempt(pendingAttempt()))

	r := waitEnroll(t, enroll(tx, MethodOTP, EnrollData{}))
	if r.err != nil {
		t.Fatalf("Enroll failed: %v", r.err)
	}

	r.step.Confirm(ConfirmData{OTPCode: "12a456"}, nil)
	err := waitFor[error](t, tx.errors, "error event")
	if !errors.Is(err, ErrOTPValidation) {
		t.Fatalf("expected ErrOTPValidation, got %v", err)
	}
	if n := len(tx.http.callsTo(pathVerifyOTP)); n != 0 {
		t.Fatalf("expected no verify-otp call, got %d", n)
	}
}

func TestEnrollOTPStepURI(t *testing.T) {
	tx := newTestTransaction(t, withEnrollmentMethods(MethodOTP), withAttempt(pendingAttempt()))

	r := waitEnroll(t, enroll(tx, MethodOTP, EnrollData{}))
	if r.err != nil {
		t.Fatalf("Enroll failed: %v", r.err)
	}
	want := "otpauth://totp/Tenant:user@example.com?algorithm=SHA1&digits=6&issuer=tenant&period=30&secret=GEZDGNBVGY3TQOJQ"
	if got := r.step.URI(); got != want {
		t.Fatalf("unexpected URI\n got %s\nwant %s", got, want)
	}
	if d := r.step.Data(); d.EnrollmentID != "dev_1" || d.Digits != 6 {
		t.Fatalf("unexpected data %+v", d)
	}
}

func TestEnrollBackendFailureIsGuardianError(t *testing.T) {
	tx := newTestTransaction(t, withEnrollmentMethods(MethodSMS), withAttempt(pendingAttempt()))
	tx.http.fail("/api/device-accounts/dev_1/sms-enroll", fmt.Errorf("connection reset"))

	r := waitEnroll(t, enroll(tx, MethodSMS, EnrollData{PhoneNumber: "+15555550100"}))
	var gerr *GuardianError
	if !errors.As(r.err, &gerr) {
		t.Fatalf("expected GuardianError, got %T %v", r.err, r.err)
	}
	if tx.EnrollmentAttempt().IsActive() {
		t.Fatal("expected attempt to be dismissed")
	}
}

func TestEnrollmentCompleteBeforeAuthResponse(t *testing.T) {
	tx := newTestTransaction(t, withEnrollmentMethods(MethodPush), withAttempt(pendingAttempt()))

	order := make(chan any, 4)
	tx.On(EventEnrollmentComplete, func(p any) { order <- p })
	tx.On(EventAuthResponse, func(p any) { order <- p })

	if r := waitEnroll(t, enroll(tx, MethodPush, EnrollData{})); r.err != nil {
		t.Fatalf("Enroll failed: %v", r.err)
	}

	tx.HandleEvent(backendEvent(t, transport.EventLoginComplete, map[string]any{"signature": "sig", "tx_id": tx.ID()}))
	expectNone(t, order, 150*time.Millisecond, "auth-response held by the enrollment")

	tx.HandleEvent(confirmedEvent(t, tx.ID()))

	first := waitFor[EnrollmentCompletePayload](t, order, "enrollment-complete")
	if first.AuthRequired {
		t.Fatal("expected AuthRequired=false")
	}
	second := waitFor[AuthResponsePayload](t, order, "auth-response")
	if !second.Accepted || second.Signature != "sig" {
		t.Fatalf("unexpected auth response %+v", second)
	}
}

func TestEnrollmentConfirmedAcceptsCamelCaseKeys(t *testing.T) {
	tx := newTestTransaction(t,
		withEnrollmentMethods(MethodPush),
		withAuthMethods(MethodPush, MethodOTP),
		withAttempt(pendingAttempt()),
	)
	complete := collect(tx.Transaction, EventEnrollmentComplete)

	// No enroll call: the attempt is inactive, so ownership rests on txId alone.
	tx.HandleEvent(transport.Event{
		Name:    transport.EventEnrollmentConfirmed,
		Payload: []byte(fmt.Sprintf(`{"txId":%q,"deviceAccount":{"availableMethods":["push","otp"],"name":"Test"}}`, tx.ID())),
	})

	got := waitFor[EnrollmentCompletePayload](t, complete, "enrollment-complete")
	if got.AuthRequired || got.RecoveryCode != "ABCDEFGHIJKLMNOPQRSTUVWX" {
		t.Fatalf("expected own enrollment, got %+v", got)
	}
	if got.Enrollment.Name() != "Test" {
		t.Fatalf("expected name Test, got %q", got.Enrollment.Name())
	}
	if m := got.Enrollment.AvailableMethods(); len(m) != 2 || m[0] != MethodPush || m[1] != MethodOTP {
		t.Fatalf("unexpected available methods %v", m)
	}

	r := waitAuth(t, requestAuth(tx, got.Enrollment, AuthOptions{}))
	if r.err != nil {
		t.Fatalf("RequestAuth on the new enrollment failed: %v", r.err)
	}
	if r.step.Method() != MethodPush {
		t.Fatalf("expected push, got %q", r.step.Method())
	}
}

func TestEnrollmentConfirmedCamelCaseForeignTxID(t *testing.T) {
	tx := newTestTransaction(t, withEnrollmentMethods(MethodPush), withAttempt(pendingAttempt()))
	complete := collect(tx.Transaction, EventEnrollmentComplete)

	tx.HandleEvent(transport.Event{
		Name:    transport.EventEnrollmentConfirmed,
		Payload: []byte(`{"txId":"tx_other","deviceAccount":{"availableMethods":["push"]}}`),
	})

	got := waitFor[EnrollmentCompletePayload](t, complete, "enrollment-complete")
	if !got.AuthRequired || got.RecoveryCode != "" {
		t.Fatalf("expected foreign enrollment to require auth, got %+v", got)
	}
}

func TestSnakeCaseKeys(t *testing.T) {
	tests := map[string]string{
		"tx_id":            "tx_id",
		"txId":             "tx_id",
		"deviceAccount":    "device_account",
		"availableMethods": "available_methods",
		"statusCode":       "status_code",
		"HTTPStatus":       "http_status",
		"otp2Secret":       "otp2_secret",
		"signature":        "signature",
	}
	for in, want := range tests {
		if got := snakeCase(in); got != want {
			t.Fatalf("snakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeEventPayloadPrefersSnakeCase(t *testing.T) {
	var p loginCompletePayload
	if err := decodeEventPayload([]byte(`{"txId":"camel","tx_id":"snake","signature":"sig"}`), &p); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if p.TxID != "snake" || p.Signature != "sig" {
		t.Fatalf("unexpected payload %+v", p)
	}

	var e backendErrorPayload
	if err := decodeEventPayload([]byte(`{"errorCode":"device_account_conflict","statusCode":409}`), &e); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if e.ErrorCode != "device_account_conflict" || e.StatusCode != 409 {
		t.Fatalf("unexpected error payload %+v", e)
	}
}

func TestFailedConfirmationReleasesHeldAuthResponse(t *testing.T) {
	tx := newTestTransaction(t, withEnrollmentMethods(MethodSMS), withAttempt(pendingAttempt()))
	tx.http.fail(pathVerifyOTP, errors.New("connection reset"))
	responses := collect(tx.Transaction, EventAuthResponse)

	r := waitEnroll(t, enroll(tx, MethodSMS, EnrollData{PhoneNumber: "+15555550100"}))
	if r.err != nil {
		t.Fatalf("Enroll failed: %v", r.err)
	}
	if !tx.EnrollmentAttempt().IsActive() {
		t.Fatal("expected active attempt after enroll")
	}

	accepted, acceptedCh := errCallback()
	r.step.Confirm(ConfirmData{OTPCode: "123456"}, accepted)
	var gerr *GuardianError
	if err := waitErr(t, acceptedCh, "accepted"); !errors.As(err, &gerr) {
		t.Fatalf("expected GuardianError, got %v", err)
	}
	if tx.EnrollmentAttempt().IsActive() {
		t.Fatal("expected failed confirmation to deactivate the attempt")
	}

	tx.HandleEvent(backendEvent(t, transport.EventLoginComplete, map[string]any{"signature": "sig"}))
	if got := waitFor[AuthResponsePayload](t, responses, "auth-response"); !got.Accepted {
		t.Fatalf("unexpected auth response %+v", got)
	}

	tx.http.respond(pathVerifyOTP, map[string]any{})
	retry, retryCh := errCallback()
	r.step.Confirm(ConfirmData{OTPCode: "123456"}, retry)
	if err := waitErr(t, retryCh, "retry accepted"); err != nil {
		t.Fatalf("expected retry accepted, got %v", err)
	}
	if !tx.EnrollmentAttempt().IsActive() {
		t.Fatal("expected retry to reactivate the attempt")
	}
}
