package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for reservation and payment flows.
type BookingMetrics struct {
	reservationsTotal *prometheus.CounterVec
	settlementsTotal  *prometheus.CounterVec
	gatewayLatency    *prometheus.HistogramVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		reservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinvia",
			Subsystem: "booking",
			Name:      "reservations_total",
			Help:      "Total reservation attempts",
		}, []string{"outcome"}),
		settlementsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinvia",
			Subsystem: "payments",
			Name:      "settlements_total",
			Help:      "Total settlement attempts per gateway",
		}, []string{"gateway", "outcome"}),
		gatewayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinvia",
			Subsystem: "payments",
			Name:      "gateway_latency_seconds",
			Help:      "Latency of payment gateway calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"gateway", "operation"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.reservationsTotal, m.settlementsTotal, m.gatewayLatency)
	return m
}

func (m *BookingMetrics) ObserveReservation(outcome string) {
	if m == nil {
		return
	}
	m.reservationsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveSettlement(gateway, outcome string) {
	if m == nil {
		return
	}
	m.settlementsTotal.WithLabelValues(gateway, outcome).Inc()
}

func (m *BookingMetrics) ObserveGatewayLatency(gateway, operation string, seconds float64) {
	if m == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(gateway, operation).Observe(seconds)
}
