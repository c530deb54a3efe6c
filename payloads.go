package goGuardian

// Transaction events.
const (
	EventEnrollmentComplete = "enrollment-complete"
	EventAuthResponse       = "auth-response"
	EventTimeout            = "timeout"
	EventError              = "error"
)

// AuthResponsePayload is the payload of [EventAuthResponse].
type AuthResponsePayload struct {
	Accepted     bool
	Signature    string
	RecoveryCode string
	Method       Method
}

// EnrollmentCompletePayload is the payload of [EventEnrollmentComplete].
type EnrollmentCompletePayload struct {
	Enrollment   *Enrollment
	AuthRequired bool
	RecoveryCode string
	Method       Method
}

type loginCompletePayload struct {
	Signature string `json:"signature"`
	TxID      string `json:"tx_id"`
}

type loginRejectedPayload struct {
	TxID string `json:"tx_id"`
}

type enrollmentConfirmedPayload struct {
	DeviceAccount deviceAccount `json:"device_account"`
	TxID          string        `json:"tx_id"`
	Method        Method        `json:"method,omitempty"`
}

type backendErrorPayload struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	ErrorCode  string `json:"error_code"`
	StatusCode int    `json:"status_code"`
}
