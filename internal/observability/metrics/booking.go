package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hospital"

// BookingMetrics exposes counters/histograms for the booking pipeline.
type BookingMetrics struct {
	stepsTotal        *prometheus.CounterVec
	stepLatency       *prometheus.HistogramVec
	reservationsTotal *prometheus.CounterVec
	checkoutsTotal    *prometheus.CounterVec
	checkoutLatency   *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "steps_total",
			Help:      "Total booking chat steps by outcome",
		}, []string{"step", "outcome"}),
		stepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "step_latency_seconds",
			Help:      "Latency of booking chat steps",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reservations",
			Name:      "operations_total",
			Help:      "Reservation operations by outcome",
		}, []string{"outcome"}),
		checkoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "checkouts_total",
			Help:      "Checkout creations by provider and outcome",
		}, []string{"provider", "outcome"}),
		checkoutLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "checkout_latency_seconds",
			Help:      "Latency of processor checkout calls",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.stepsTotal, m.stepLatency, m.reservationsTotal, m.checkoutsTotal, m.checkoutLatency)
	return m
}

func (m *BookingMetrics) ObserveStep(step, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.stepsTotal.WithLabelValues(step, outcome).Inc()
	m.stepLatency.WithLabelValues(step).Observe(elapsed.Seconds())
}

func (m *BookingMetrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveCheckout(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.checkoutsTotal.WithLabelValues(provider, outcome).Inc()
	m.checkoutLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}
