// Package goGuardian coordinates multi-factor authentication transactions against a
// Guardian-style MFA service: enrolling a device with sms, push or otp, and
// authenticating an enrolled device, including recovery codes.
//
// A [Transaction] reconciles two channels that finish in any order: the HTTP responses
// to the calls it makes, and the backend events (login:complete, login:rejected,
// enrollment:confirmed) delivered by a transport. Each verification or confirmation step
// merges both into exactly one terminal event.
//
// # Architecture boundaries
//
// goGuardian is the public surface. It exposes [Guardian], [Builder], [Config],
// [Transaction], the step types and value types. Event sequencing, listener hubs, the
// transaction loop and the async combinators live under internal/ and are never
// exported. Transports live under transport/, persistence under store/.
//
// # Concurrency
//
// [Guardian] methods are safe from multiple goroutines. Each [Transaction] runs its
// state changes and callbacks on one goroutine of its own, so listeners never run
// concurrently with each other for the same transaction.
//
// # What this package must NOT do
//
//   - Verify token signatures; the service does.
//   - Retry failed HTTP calls.
//   - Share sequencers or hubs between transactions.
package goGuardian
