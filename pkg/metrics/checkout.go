package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics counts checkout attempts and payment outcomes.
type CheckoutMetrics struct {
	attempts *prometheus.CounterVec
	payments *prometheus.CounterVec
	revenue  prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Checkout attempts by eligibility outcome.",
	}, []string{"outcome"})
	payments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "payment_events_total",
		Help:      "Payment provider events applied to orders.",
	}, []string{"result"})
	revenue := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "paid_cents_total",
		Help:      "Sum of paid order totals in minor units.",
	})
	reg.MustRegister(attempts, payments, revenue)
	return &CheckoutMetrics{attempts: attempts, payments: payments, revenue: revenue}
}

// IncAttempt records a checkout attempt; outcome is "eligible" or an ineligibility reason.
func (c *CheckoutMetrics) IncAttempt(outcome string) {
	if c == nil || c.attempts == nil {
		return
	}
	c.attempts.WithLabelValues(label(outcome)).Inc()
}

func (c *CheckoutMetrics) IncPayment(result string) {
	if c == nil || c.payments == nil {
		return
	}
	c.payments.WithLabelValues(label(result)).Inc()
}

func (c *CheckoutMetrics) AddRevenue(cents int64) {
	if c == nil || c.revenue == nil || cents <= 0 {
		return
	}
	c.revenue.Add(float64(cents))
}
