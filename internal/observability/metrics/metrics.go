package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	namespace = "booking"

	// SubmissionsMetric is the fully qualified name of the submissions counter.
	SubmissionsMetric = "booking_orders_submissions_total"
	// DeadLettersMetric is the fully qualified name of the dead-letter counter.
	DeadLettersMetric = "booking_tasks_dead_letters_total"
)

// BookingMetrics exposes counters/histograms for the booking workflow.
type BookingMetrics struct {
	submissionsTotal *prometheus.CounterVec
	upstreamTotal    *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	tasksTotal       *prometheus.CounterVec
	deadLetters      *prometheus.CounterVec
	pincodeChecks    *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		submissionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "submissions_total",
			Help:      "Order submissions by terminal outcome",
		}, []string{"outcome"}),
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Calls to the diagnostics provider by endpoint and result",
		}, []string{"endpoint", "result"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "latency_seconds",
			Help:      "Latency of diagnostics provider calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "processed_total",
			Help:      "Side-effect tasks processed by kind and result",
		}, []string{"kind", "result"}),
		deadLetters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "dead_letters_total",
			Help:      "Side-effect tasks that exhausted their retries",
		}, []string{"kind"}),
		pincodeChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pincode",
			Name:      "checks_total",
			Help:      "Pincode verification outcomes",
		}, []string{"state", "cached"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.submissionsTotal, m.upstreamTotal, m.upstreamLatency, m.tasksTotal, m.deadLetters, m.pincodeChecks)
	return m
}

func (m *BookingMetrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveUpstream(endpoint, result string, seconds float64) {
	if m == nil {
		return
	}
	m.upstreamTotal.WithLabelValues(endpoint, result).Inc()
	m.upstreamLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *BookingMetrics) ObserveTask(kind, result string) {
	if m == nil {
		return
	}
	m.tasksTotal.WithLabelValues(kind, result).Inc()
}

func (m *BookingMetrics) ObserveDeadLetter(kind string) {
	if m == nil {
		return
	}
	m.deadLetters.WithLabelValues(kind).Inc()
}

func (m *BookingMetrics) ObservePincode(state string, cached bool) {
	if m == nil {
		return
	}
	label := "false"
	if cached {
		label = "true"
	}
	m.pincodeChecks.WithLabelValues(state, label).Inc()
}

// CounterTotals sums a counter family by the value of one label.
// Families that are missing or not counters yield an empty map.
func CounterTotals(gatherer prometheus.Gatherer, family, label string) map[string]float64 {
	out := map[string]float64{}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return out
	}
	var mf *dto.MetricFamily
	for _, candidate := range mfs {
		if candidate != nil && candidate.GetName() == family {
			mf = candidate
			break
		}
	}
	if mf == nil || mf.GetType() != dto.MetricType_COUNTER {
		return out
	}
	for _, metric := range mf.Metric {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		out[labelValue(metric, label)] += metric.GetCounter().GetValue()
	}
	return out
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
