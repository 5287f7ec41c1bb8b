package metrics

import "github.com/prometheus/client_golang/prometheus"

// CheckoutMetrics exposes counters/histograms for the payment checkout flow.
type CheckoutMetrics struct {
	sessionsTotal *prometheus.CounterVec
	outcomesTotal *prometheus.CounterVec
	pollsTotal    *prometheus.CounterVec
	vendorLatency *prometheus.HistogramVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	m := &CheckoutMetrics{
		sessionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "checkout",
			Name:      "sessions_total",
			Help:      "Payment sessions requested from the billing backend",
		}, []string{"status"}),
		outcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "checkout",
			Name:      "outcomes_total",
			Help:      "Terminal checkout outcomes",
		}, []string{"outcome"}),
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "checkout",
			Name:      "status_polls_total",
			Help:      "Settlement status polls by reported status",
		}, []string{"status"}),
		vendorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "checkout",
			Name:      "vendor_latency_seconds",
			Help:      "Latency of vendor checkout operations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.sessionsTotal, m.outcomesTotal, m.pollsTotal, m.vendorLatency)
	return m
}

func (m *CheckoutMetrics) ObserveSession(status string) {
	if m == nil {
		return
	}
	m.sessionsTotal.WithLabelValues(status).Inc()
}

func (m *CheckoutMetrics) ObserveOutcome(outcome string) {
	if m == nil {
		return
	}
	m.outcomesTotal.WithLabelValues(outcome).Inc()
}

func (m *CheckoutMetrics) ObservePoll(status string) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(status).Inc()
}

func (m *CheckoutMetrics) ObserveVendorLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.vendorLatency.WithLabelValues(operation).Observe(seconds)
}
