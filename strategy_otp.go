package goGuardian

import "context"

type otpEnrollmentStrategy struct {
	deps strategyDeps
}

func (s *otpEnrollmentStrategy) Method() Method { return MethodOTP }

func (s *otpEnrollmentStrategy) Enroll(context.Context, EnrollData) error { return nil }

func (s *otpEnrollmentStrategy) Confirm(ctx context.Context, data ConfirmData) error {
	return s.deps.verifyOTP(ctx, data.OTPCode)
}

func (s *otpEnrollmentStrategy) URI() string {
	return authenticatorURI(s.Data())
}

func (s *otpEnrollmentStrategy) Data() EnrollmentURIData {
	return enrollmentURIData(s.deps.attempt())
}

type otpAuthStrategy struct {
	deps strategyDeps
}

func (s *otpAuthStrategy) Method() Method { return MethodOTP }

func (s *otpAuthStrategy) Request(context.Context) error { return nil }

func (s *otpAuthStrategy) Verify(ctx context.Context, data VerifyData) (verifyResult, error) {
	return verifyResult{}, s.deps.verifyOTP(ctx, data.OTPCode)
}
