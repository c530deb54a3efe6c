package goGuardian

import (
	"context"
	"fmt"
	"strings"
)

type smsEnrollmentStrategy struct {
	deps strategyDeps
}

type smsEnrollRequest struct {
	PhoneNumber string `json:"phone_number"`
}

func (s *smsEnrollmentStrategy) Method() Method { return MethodSMS }

func (s *smsEnrollmentStrategy) Enroll(ctx context.Context, data EnrollData) error {
	phone := strings.TrimSpace(data.PhoneNumber)
	if phone == "" {
		return &FieldRequiredError{Field: "phoneNumber"}
	}
	attempt := s.deps.attempt()
	if attempt == nil || attempt.EnrollmentID() == "" {
		return ErrInvalidState
	}
	path := fmt.Sprintf(pathSMSEnrollTemplate, escapePathSegment(attempt.EnrollmentID()))
	return toGuardianError(s.deps.http.Post(ctx, path, s.deps.token(), smsEnrollRequest{PhoneNumber: phone}, nil))
}

func (s *smsEnrollmentStrategy) Confirm(ctx context.Context, data ConfirmData) error {
	return s.deps.verifyOTP(ctx, data.OTPCode)
}

func (s *smsEnrollmentStrategy) URI() string { return "" }

func (s *smsEnrollmentStrategy) Data() EnrollmentURIData { return EnrollmentURIData{} }

type smsAuthStrategy struct {
	deps strategyDeps
}

func (s *smsAuthStrategy) Method() Method { return MethodSMS }

func (s *smsAuthStrategy) Request(ctx context.Context) error {
	return toGuardianError(s.deps.http.Post(ctx, pathSendSMS, s.deps.token(), nil, nil))
}

func (s *smsAuthStrategy) Verify(ctx context.Context, data VerifyData) (verifyResult, error) {
	return verifyResult{}, s.deps.verifyOTP(ctx, data.OTPCode)
}
