package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records submission, reconciliation and confirmation outcomes.
type PaymentMetrics struct {
	submissions     *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	confirmations   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	submissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "momopay_submissions_total",
		Help: "Charge submissions by outcome.",
	}, []string{"outcome"})
	reconciliations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "momopay_reconciliations_total",
		Help: "Reconciliation runs by outcome.",
	}, []string{"outcome"})
	confirmations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "momopay_confirmations_total",
		Help: "Confirmation poller results by source and outcome.",
	}, []string{"source", "outcome"})
	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "momopay_backend_request_duration_seconds",
		Help:    "Duration of backend requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "result"})
	reg.MustRegister(submissions, reconciliations, confirmations, requestDuration)
	return &PaymentMetrics{
		submissions:     submissions,
		reconciliations: reconciliations,
		confirmations:   confirmations,
		requestDuration: requestDuration,
	}
}

// IncSubmission counts one send attempt by outcome.
func (m *PaymentMetrics) IncSubmission(outcome string) {
	if m == nil || m.submissions == nil {
		return
	}
	m.submissions.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncReconciliation counts one reconciliation run by outcome.
func (m *PaymentMetrics) IncReconciliation(outcome string) {
	if m == nil || m.reconciliations == nil {
		return
	}
	m.reconciliations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncConfirmation counts a terminal poller result. Source is "poll" or "backup".
func (m *PaymentMetrics) IncConfirmation(source, outcome string) {
	if m == nil || m.confirmations == nil {
		return
	}
	m.confirmations.WithLabelValues(normalizeLabel(source), normalizeLabel(outcome)).Inc()
}

// ObserveRequest records the duration of a backend call.
func (m *PaymentMetrics) ObserveRequest(endpoint, result string, duration time.Duration) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.WithLabelValues(normalizeLabel(endpoint), normalizeLabel(result)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
