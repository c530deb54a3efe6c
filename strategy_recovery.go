package goGuardian

import "context"

type recoveryAuthStrategy struct {
	deps strategyDeps
}

type recoverAccountRequest struct {
	RecoveryCode string `json:"recovery_code"`
}

type recoverAccountResponse struct {
	RecoveryCode string `json:"recovery_code"`
}

func (s *recoveryAuthStrategy) Method() Method { return MethodRecovery }

func (s *recoveryAuthStrategy) Request(context.Context) error { return nil }

// Verify redeems the code. The service answers with the replacement recovery code.
func (s *recoveryAuthStrategy) Verify(ctx context.Context, data VerifyData) (verifyResult, error) {
	code, err := validateRecoveryCode(data.RecoveryCode)
	if err != nil {
		return verifyResult{}, err
	}
	var resp recoverAccountResponse
	err = s.deps.http.Post(ctx, pathRecoverAccount, s.deps.token(), recoverAccountRequest{RecoveryCode: code}, &resp)
	if err != nil {
		return verifyResult{}, toGuardianError(err)
	}
	return verifyResult{RecoveryCode: resp.RecoveryCode}, nil
}
