package goGuardian

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuardian/httpclient"
)

// CodedError is implemented by every error in the goGuardian taxonomy.
type CodedError interface {
	error
	ErrorCode() string
}

type codedError struct {
	code    string
	message string
}

func (e *codedError) Error() string     { return e.message }
func (e *codedError) ErrorCode() string { return e.code }

func newCoded(code, message string) *codedError {
	return &codedError{code: code, message: message}
}

var (
	// ErrCredentialsExpired is returned when the transaction token has expired.
	ErrCredentialsExpired = newCoded("credentials_expired", "credentials expired")
	// ErrInvalidToken is returned when the transaction token cannot be decoded.
	ErrInvalidToken = newCoded("invalid_token", "invalid transaction token")
	// ErrNoMethodAvailable is returned when no enrollment or authentication method is configured.
	ErrNoMethodAvailable = newCoded("no_method_available", "there is no method available")
	// ErrMethodNotFound is returned when no strategy is registered for the requested method.
	ErrMethodNotFound = newCoded("method_not_found", "method not found")
	// ErrFieldRequired matches every [*FieldRequiredError].
	ErrFieldRequired = newCoded("field_required", "field required")
	// ErrOTPValidation is returned when an OTP code is not exactly 6 digits.
	ErrOTPValidation = newCoded("invalid_otp_format", "otp validation error")
	// ErrRecoveryCodeValidation is returned when a recovery code is not 24 alphanumeric characters.
	ErrRecoveryCodeValidation = newCoded("invalid_recovery_code_format", "recovery code validation error")
	// ErrAlreadyEnrolled is returned by Enroll on an enrolled transaction.
	ErrAlreadyEnrolled = newCoded("already_enrolled", "you cannot enroll again; you are already enrolled")
	// ErrNotEnrolled is returned by RequestAuth and Recover on a transaction without enrollments.
	ErrNotEnrolled = newCoded("not_enrolled", "you are not enrolled; please enroll before authenticating")
	// ErrAuthMethodDisabled matches every [*AuthMethodDisabledError].
	ErrAuthMethodDisabled = newCoded("auth_method_disabled", "authentication method disabled")
	// ErrEnrollmentMethodDisabled matches every [*EnrollmentMethodDisabledError].
	ErrEnrollmentMethodDisabled = newCoded("enrollment_method_disabled", "enrollment method disabled")
	// ErrInvalidEnrollment is returned when an enrollment or its methods are missing.
	ErrInvalidEnrollment = newCoded("invalid_enrollment", "invalid enrollment")
	// ErrInvalidState is returned when an operation does not fit the transaction state.
	ErrInvalidState = newCoded("invalid_state", "invalid state")
	// ErrUnexpectedInput is returned when input has an unexpected shape.
	ErrUnexpectedInput = newCoded("unexpected_input", "unexpected input")
	// ErrTransactionClosed is returned for calls made after Close.
	ErrTransactionClosed = newCoded("transaction_closed", "transaction closed")
	// ErrStoreNotConfigured is returned by Save, Load and Forget without a Redis client.
	ErrStoreNotConfigured = newCoded("store_not_configured", "transaction store not configured")
)

// FieldRequiredError reports a missing input field.
type FieldRequiredError struct {
	Field string
}

func (e *FieldRequiredError) Error() string     { return e.Field + " is required" }
func (e *FieldRequiredError) ErrorCode() string { return ErrFieldRequired.code }
func (e *FieldRequiredError) Is(target error) bool {
	return target == ErrFieldRequired
}

// AuthMethodDisabledError reports an authentication method that is not available.
type AuthMethodDisabledError struct {
	Method Method
}

func (e *AuthMethodDisabledError) Error() string {
	return fmt.Sprintf("the method %q is disabled for authentication", e.Method)
}
func (e *AuthMethodDisabledError) ErrorCode() string { return ErrAuthMethodDisabled.code }
func (e *AuthMethodDisabledError) Is(target error) bool {
	return target == ErrAuthMethodDisabled
}

// EnrollmentMethodDisabledError reports an enrollment method that is not available.
type EnrollmentMethodDisabledError struct {
	Method Method
}

func (e *EnrollmentMethodDisabledError) Error() string {
	return fmt.Sprintf("the method %q is disabled for enrollment", e.Method)
}
func (e *EnrollmentMethodDisabledError) ErrorCode() string { return ErrEnrollmentMethodDisabled.code }
func (e *EnrollmentMethodDisabledError) Is(target error) bool {
	return target == ErrEnrollmentMethodDisabled
}

// GuardianError is a failure reported by the MFA service over HTTP or the event channel.
type GuardianError struct {
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

func (e *GuardianError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
func (e *GuardianError) ErrorCode() string { return e.Code }
func (e *GuardianError) Unwrap() error     { return e.Cause }

var legacyErrorCodes = map[string]string{
	"device_account_conflict":  "enrollment_conflict",
	"device_account_not_found": "enrollment_not_found",
}

func newGuardianError(code, message string, statusCode int, cause error) *GuardianError {
	if mapped, ok := legacyErrorCodes[code]; ok {
		code = mapped
	}
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &GuardianError{Code: code, Message: message, StatusCode: statusCode, Cause: cause}
}

// toGuardianError classifies backend failures. Taxonomy errors and context errors pass
// through unchanged.
func toGuardianError(err error) error {
	if err == nil {
		return nil
	}
	var coded CodedError
	if errors.As(err, &coded) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var respErr *httpclient.ResponseError
	if errors.As(err, &respErr) {
		return newGuardianError(respErr.ErrorCode, respErr.Message, respErr.StatusCode, err)
	}
	return newGuardianError("", "", 0, err)
}
