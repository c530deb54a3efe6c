// Package audit implements async dispatching of transaction audit records.
//
// # Components
//
//   - [Sink] receives records (channel, JSON writer, no-op).
//   - [Dispatcher] is a buffered relay with drop-if-full or block-if-full delivery.
//   - [Event] is one record: timestamp, type, transaction id, method, outcome, metadata.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. Which records are written is decided by
// the transaction.
//
// # What this package must NOT do
//
//   - Filter events based on business logic.
//   - Import goGuardian or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
