// Package prometheus renders goGuardian metrics in Prometheus text exposition format.
//
// [NewPrometheusExporter] accepts a [goGuardian.Guardian] and exposes an [http.Handler].
// Counter names are prefixed goguardian_*_total; the single histogram is
// goguardian_step_latency_seconds and goguardian_active_transactions is a gauge.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate guardian state.
package prometheus
