package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes.
const (
	OutcomeCreated       = "created"
	OutcomeCarrierFailed = "carrier_failed"
	OutcomeDuplicate     = "duplicate"
	OutcomePersistFailed = "persist_failed"
	OutcomeRejected      = "rejected"
)

// CheckoutMetrics tracks the order pipeline and its carrier dependency.
type CheckoutMetrics struct {
	outcomes      *prometheus.CounterVec
	carrierCalls  *prometheus.HistogramVec
	carrierErrors *prometheus.CounterVec
	compensations *prometheus.CounterVec
	queueDepth    prometheus.Gauge
}

// NewCheckoutMetrics registers checkout collectors on reg. A nil registerer
// yields a no-op recorder.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kibble_checkout_total",
			Help: "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		carrierCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kibble_carrier_call_duration_seconds",
			Help:    "Latency of carrier API calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		carrierErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kibble_carrier_call_errors_total",
			Help: "Failed carrier API calls.",
		}, []string{"operation"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kibble_waybill_compensation_total",
			Help: "Waybill cancellation attempts by result.",
		}, []string{"result"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kibble_waybill_compensation_queue_depth",
			Help: "Pending waybill cancellations.",
		}),
	}
	reg.MustRegister(m.outcomes, m.carrierCalls, m.carrierErrors, m.compensations, m.queueDepth)
	return m
}

// IncOutcome counts one checkout result.
func (m *CheckoutMetrics) IncOutcome(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveCarrierCall matches the carrier client's observer hook.
func (m *CheckoutMetrics) ObserveCarrierCall(operation string, elapsed time.Duration, err error) {
	if m == nil || m.carrierCalls == nil {
		return
	}
	op := normalizeLabel(operation)
	m.carrierCalls.WithLabelValues(op).Observe(elapsed.Seconds())
	if err != nil {
		m.carrierErrors.WithLabelValues(op).Inc()
	}
}

// IncCompensation counts a cancellation attempt (cancelled, requeued, dead).
func (m *CheckoutMetrics) IncCompensation(result string) {
	if m == nil || m.compensations == nil {
		return
	}
	m.compensations.WithLabelValues(normalizeLabel(result)).Inc()
}

// SetQueueDepth records the compensation backlog.
func (m *CheckoutMetrics) SetQueueDepth(depth int64) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
