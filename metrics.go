package goGuardian

import (
	"sync/atomic"
	"time"
)

// MetricID defines a public type used by goGuardian APIs.
//
// MetricID values index the counters and histograms held by [Metrics].
type MetricID uint16

const (
	// MetricEnrollmentStarted counts accepted Enroll calls.
	MetricEnrollmentStarted MetricID = iota
	// MetricEnrollmentComplete counts emitted enrollment-complete events.
	MetricEnrollmentComplete
	// MetricEnrollmentFailure counts enrollments rejected by a guard or the service.
	MetricEnrollmentFailure
	// MetricAuthRequested counts accepted RequestAuth calls.
	MetricAuthRequested
	// MetricAuthAccepted counts auth-response events with Accepted set.
	MetricAuthAccepted
	// MetricAuthRejected counts auth-response events with Accepted unset.
	MetricAuthRejected
	// MetricAuthFailure counts authentication requests or verifications that failed.
	MetricAuthFailure
	// MetricRecoveryAttempt counts Recover calls.
	MetricRecoveryAttempt
	// MetricValidationFailure counts inputs rejected before any network call.
	MetricValidationFailure
	// MetricTokenExpired counts transactions whose token expired.
	MetricTokenExpired
	// MetricBackendError counts errors reported by the service.
	MetricBackendError
	// MetricStepLatency is the latency histogram of verification and confirmation steps.
	MetricStepLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// MetricsConfig controls metric collection.
type MetricsConfig struct {
	Enabled                 bool `env:"ENABLED"`
	EnableLatencyHistograms bool `env:"LATENCY_HISTOGRAMS"`
}

// Metrics defines a public type used by goGuardian APIs.
//
// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics returns a collector that records only when cfg.Enabled is set.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the step latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc describes the inc operation and its observable behavior.
//
// Inc adds one to the counter for id. It is a no-op when metrics are disabled.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the latency histogram for id. Only [MetricStepLatency] carries a
// histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricStepLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current counter for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot copies every counter and, when latency is enabled, the step latency buckets.
// A disabled collector returns empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricStepLatency].buckets[i])
		}
		s.Histograms[MetricStepLatency] = buckets
	}

	return s
}

// Step latencies are dominated by human interaction, so buckets span seconds.
func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 250:
		return 0
	case ms <= 500:
		return 1
	case ms <= 1000:
		return 2
	case ms <= 2500:
		return 3
	case ms <= 5000:
		return 4
	case ms <= 10000:
		return 5
	case ms <= 30000:
		return 6
	default:
		return 7
	}
}
