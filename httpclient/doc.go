// Package httpclient is the JSON-over-HTTP client used to talk to the MFA service.
//
// Every call carries the transaction token as a bearer credential. Non-2xx responses are
// classified into [*ResponseError] from the service's error body so callers never parse
// HTTP payloads themselves.
//
// # What this package must NOT do
//
//   - Retry requests (callers decide; the service treats OTP submissions as single use).
//   - Import goGuardian.
package httpclient
