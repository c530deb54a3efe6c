// Package otel provides OpenTelemetry metric exporter bindings for goGuardian counters
// and histograms.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for each goGuardian
// metric, an Int64ObservableGauge per histogram bucket and one gauge of active
// transactions. A single callback reads [goGuardian.Guardian.MetricsSnapshot] on each
// collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate guardian state.
package otel
