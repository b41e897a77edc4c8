package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PaymentMetrics records outcomes of payment and email processing.
type PaymentMetrics struct {
	duration  *prometheus.HistogramVec
	completed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	emails    *prometheus.CounterVec
}

// NewPaymentMetrics registers the payment metrics on the provided registerer.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_duration_seconds",
		Help:    "Duration of payment processing in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"currency"})
	completed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_completed",
		Help: "Payments completed by the processor.",
	}, []string{"currency"})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_failed",
		Help: "Payments rejected or failed, by reason.",
	}, []string{"reason"})
	emails := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "email_send_total",
		Help: "Transactional email sends by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(duration, completed, failed, emails)
	return &PaymentMetrics{
		duration:  duration,
		completed: completed,
		failed:    failed,
		emails:    emails,
	}
}

// ObserveDuration records the processing time for a payment in the given currency.
func (p *PaymentMetrics) ObserveDuration(currency string, duration time.Duration) {
	if p == nil || p.duration == nil {
		return
	}
	p.duration.WithLabelValues(normalizeLabel(currency)).Observe(duration.Seconds())
}

// IncCompleted increments the completed counter for the given currency.
func (p *PaymentMetrics) IncCompleted(currency string) {
	if p == nil || p.completed == nil {
		return
	}
	p.completed.WithLabelValues(normalizeLabel(currency)).Inc()
}

// IncFailed increments the failure counter for the named reason.
func (p *PaymentMetrics) IncFailed(reason string) {
	if p == nil || p.failed == nil {
		return
	}
	p.failed.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncEmail increments the email counter for the named outcome.
func (p *PaymentMetrics) IncEmail(outcome string) {
	if p == nil || p.emails == nil {
		return
	}
	p.emails.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
