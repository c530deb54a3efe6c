package goGuardian

import "context"

// Push enrollment and verification are completed by the Guardian app; the backend event
// is the only signal.
type pushEnrollmentStrategy struct {
	deps strategyDeps
}

func (s *pushEnrollmentStrategy) Method() Method { return MethodPush }

func (s *pushEnrollmentStrategy) Enroll(context.Context, EnrollData) error { return nil }

func (s *pushEnrollmentStrategy) Confirm(context.Context, ConfirmData) error { return nil }

func (s *pushEnrollmentStrategy) URI() string {
	return guardianAppURI(s.Data())
}

func (s *pushEnrollmentStrategy) Data() EnrollmentURIData {
	return enrollmentURIData(s.deps.attempt())
}

type pushAuthStrategy struct {
	deps strategyDeps
}

func (s *pushAuthStrategy) Method() Method { return MethodPush }

func (s *pushAuthStrategy) Request(ctx context.Context) error {
	return toGuardianError(s.deps.http.Post(ctx, pathSendPush, s.deps.token(), nil, nil))
}

func (s *pushAuthStrategy) Verify(context.Context, VerifyData) (verifyResult, error) {
	return verifyResult{}, nil
}
