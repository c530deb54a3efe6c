// Package async runs independent tasks concurrently and combines their outcomes.
//
// # Combinators
//
//   - [All] — join: every task must succeed; the first failure returns immediately.
//   - [Any] — race: the first success returns immediately; total failure yields [AggregateError].
//
// Both combinators cancel the context handed to the remaining tasks once they have an
// answer, and never wait for stragglers. Straggler results are written to buffered
// channels and discarded.
//
// # What this package must NOT do
//
//   - Retry tasks or impose timeouts (callers own the context).
//   - Import goGuardian or any sibling internal package.
package async
