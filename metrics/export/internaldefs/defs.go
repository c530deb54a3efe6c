package internaldefs

import (
	goGuardian "github.com/MrEthical07/goGuardian"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   goGuardian.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   goGuardian.MetricID
	Name string
	Help string
}

// ActiveTransactionsName is the gauge of open transactions.
const ActiveTransactionsName = "goguardian_active_transactions"

// ActiveTransactionsHelp describes [ActiveTransactionsName].
const ActiveTransactionsHelp = "Transactions started or resumed and not yet closed."

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goGuardian.MetricEnrollmentStarted, Name: "goguardian_enrollment_started_total", Help: "Accepted enrollment requests."},
	{ID: goGuardian.MetricEnrollmentComplete, Name: "goguardian_enrollment_complete_total", Help: "Confirmed enrollments."},
	{ID: goGuardian.MetricEnrollmentFailure, Name: "goguardian_enrollment_failure_total", Help: "Enrollments rejected locally or by the service."},
	{ID: goGuardian.MetricAuthRequested, Name: "goguardian_auth_requested_total", Help: "Authentication requests."},
	{ID: goGuardian.MetricAuthAccepted, Name: "goguardian_auth_accepted_total", Help: "Accepted authentication responses."},
	{ID: goGuardian.MetricAuthRejected, Name: "goguardian_auth_rejected_total", Help: "Rejected authentication responses."},
	{ID: goGuardian.MetricAuthFailure, Name: "goguardian_auth_failure_total", Help: "Failed authentication requests or verifications."},
	{ID: goGuardian.MetricRecoveryAttempt, Name: "goguardian_recovery_attempt_total", Help: "Recovery code submissions."},
	{ID: goGuardian.MetricValidationFailure, Name: "goguardian_validation_failure_total", Help: "Inputs rejected before any network call."},
	{ID: goGuardian.MetricTokenExpired, Name: "goguardian_token_expired_total", Help: "Transactions whose token expired."},
	{ID: goGuardian.MetricBackendError, Name: "goguardian_backend_error_total", Help: "Errors reported by the MFA service."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goGuardian.MetricStepLatency, Name: "goguardian_step_latency_seconds", Help: "Verification and confirmation step latency histogram."},
}

// HistogramBounds are the upper bounds of the latency buckets.
var HistogramBounds = []string{
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"10",
	"30",
	"+Inf",
}

// HistogramBoundSuffix are [HistogramBounds] in a form valid inside instrument names.
var HistogramBoundSuffix = []string{
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"10",
	"30",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size bucket array, zero filling.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
