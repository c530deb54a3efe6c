package goGuardian

// Method is an enrollment or authentication method.
type Method string

const (
	// MethodSMS delivers a one-time code by text message.
	MethodSMS Method = "sms"
	// MethodPush approves the login from the Guardian app.
	MethodPush Method = "push"
	// MethodOTP verifies a code from an authenticator app.
	MethodOTP Method = "otp"
	// MethodRecovery authenticates with a recovery code.
	MethodRecovery Method = "recovery"
)

func (m Method) String() string { return string(m) }

func containsMethod(list []Method, m Method) bool {
	for _, v := range list {
		if v == m {
			return true
		}
	}
	return false
}

func cloneMethods(in []Method) []Method {
	if in == nil {
		return nil
	}
	return append([]Method(nil), in...)
}
