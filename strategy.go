package goGuardian

import (
	"context"
	"net/url"
)

// Service endpoints.
const (
	pathStartFlow         = "/api/start-flow"
	pathVerifyOTP         = "/api/verify-otp"
	pathSendSMS           = "/api/send-sms"
	pathSendPush          = "/api/send-push-notification"
	pathRecoverAccount    = "/api/recover-account"
	pathSMSEnrollTemplate = "/api/device-accounts/%s/sms-enroll"
)

// HTTPClient is the JSON client used to reach the MFA service. *httpclient.Client
// implements it.
type HTTPClient interface {
	Post(ctx context.Context, path, token string, data, out any) error
	Get(ctx context.Context, path, token string, out any) error
}

// EnrollData is the input of Enroll.
type EnrollData struct {
	PhoneNumber string
}

// ConfirmData is the input of an enrollment confirmation.
type ConfirmData struct {
	OTPCode string
}

// VerifyData is the input of an authentication verification.
type VerifyData struct {
	OTPCode      string
	RecoveryCode string
}

// RecoveryData is the input of Recover.
type RecoveryData struct {
	RecoveryCode string
}

// AuthOptions customizes RequestAuth.
type AuthOptions struct {
	Method Method
}

type verifyResult struct {
	RecoveryCode string
}

type enrollmentStrategy interface {
	Method() Method
	Enroll(ctx context.Context, data EnrollData) error
	Confirm(ctx context.Context, data ConfirmData) error
	URI() string
	Data() EnrollmentURIData
}

type authStrategy interface {
	Method() Method
	Request(ctx context.Context) error
	Verify(ctx context.Context, data VerifyData) (verifyResult, error)
}

type strategyDeps struct {
	http    HTTPClient
	token   func() string
	attempt func() *EnrollmentAttempt
}

type verifyOTPRequest struct {
	Type string `json:"type"`
	Code string `json:"code"`
}

func (d strategyDeps) verifyOTP(ctx context.Context, code string) error {
	code, err := validateOTPCode(code)
	if err != nil {
		return err
	}
	req := verifyOTPRequest{Type: "manual_input", Code: code}
	return toGuardianError(d.http.Post(ctx, pathVerifyOTP, d.token(), req, nil))
}

func newEnrollmentStrategies(d strategyDeps) map[Method]enrollmentStrategy {
	return map[Method]enrollmentStrategy{
		MethodSMS:  &smsEnrollmentStrategy{deps: d},
		MethodPush: &pushEnrollmentStrategy{deps: d},
		MethodOTP:  &otpEnrollmentStrategy{deps: d},
	}
}

func newAuthStrategies(d strategyDeps) map[Method]authStrategy {
	return map[Method]authStrategy{
		MethodSMS:      &smsAuthStrategy{deps: d},
		MethodPush:     &pushAuthStrategy{deps: d},
		MethodOTP:      &otpAuthStrategy{deps: d},
		MethodRecovery: &recoveryAuthStrategy{deps: d},
	}
}

func escapePathSegment(v string) string {
	return url.PathEscape(v)
}
