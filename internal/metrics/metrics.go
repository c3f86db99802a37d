package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// SchedulingMetrics exposes counters/histograms for shifts, appointments and invoices.
type SchedulingMetrics struct {
	shiftOps        *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	invoices        *prometheus.CounterVec
	invoiceAmount   prometheus.Histogram
	requestDuration *prometheus.HistogramVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		shiftOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "shifts",
			Name:      "operations_total",
			Help:      "Shift registry operations by outcome",
		}, []string{"operation", "result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment lifecycle transitions by outcome",
		}, []string{"transition", "result"}),
		invoices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hospital",
			Subsystem: "billing",
			Name:      "invoices_generated_total",
			Help:      "Invoice generation attempts by trigger and outcome",
		}, []string{"trigger", "result"}),
		invoiceAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hospital",
			Subsystem: "billing",
			Name:      "invoice_total_amount",
			Help:      "Total amount of generated invoices",
			Buckets:   []float64{50, 100, 150, 200, 300, 500, 1000},
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hospital",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests by route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.shiftOps, m.transitions, m.invoices, m.invoiceAmount, m.requestDuration)
	return m
}

func (m *SchedulingMetrics) ObserveShiftOperation(operation, result string) {
	if m == nil {
		return
	}
	m.shiftOps.WithLabelValues(operation, result).Inc()
}

func (m *SchedulingMetrics) ObserveTransition(transition, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(transition, result).Inc()
}

func (m *SchedulingMetrics) ObserveInvoice(trigger, result string) {
	if m == nil {
		return
	}
	m.invoices.WithLabelValues(trigger, result).Inc()
}

// ObserveInvoiceAmount records a generated total. The float conversion is for the histogram only.
func (m *SchedulingMetrics) ObserveInvoiceAmount(total decimal.Decimal) {
	if m == nil {
		return
	}
	m.invoiceAmount.Observe(total.InexactFloat64())
}

func (m *SchedulingMetrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(method, route, status).Observe(seconds)
}
