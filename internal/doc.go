// Package internal contains the building blocks private to goGuardian.
//
// # Sub-packages
//
//   - async: All (fail-fast join) and Any (first success) over concurrent tasks
//   - audit: buffered dispatcher delivering audit records to a sink
//   - emitter: named-event emitter with stable listener ids
//   - hub: per-event listener tiers with a default fallback handler
//   - loop: the serial executor that owns a transaction's state
//   - sequencer: releases events in declared orders
//
// # What this package must NOT do
//
//   - Export types that appear in the public goGuardian API, except through aliases.
//   - Be imported by any package outside the goGuardian module.
package internal
