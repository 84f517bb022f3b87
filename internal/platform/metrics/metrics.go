package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the registration client and the
// development backend.
type Metrics struct {
	SubmissionsTotal    *prometheus.CounterVec
	PollsTotal          *prometheus.CounterVec
	TransitionsTotal    *prometheus.CounterVec
	IgnoredReadsTotal   *prometheus.CounterVec
	BackendLatency      *prometheus.HistogramVec
	PollerDegraded      *prometheus.GaugeVec
	LivePreviews        prometheus.Gauge
	BackendRequestTotal *prometheus.CounterVec
}

// New registers all collectors on reg. Passing a fresh prometheus.NewRegistry()
// keeps tests independent of the global registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hackmate_registration_submissions_total",
			Help: "Payment submissions by outcome",
		}, []string{"outcome"}),
		PollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hackmate_registration_polls_total",
			Help: "Status reads by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hackmate_registration_transitions_total",
			Help: "Accepted registration status transitions",
		}, []string{"from", "to"}),
		IgnoredReadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hackmate_registration_ignored_reads_total",
			Help: "Status observations discarded by the state machine",
		}, []string{"reason"}),
		BackendLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hackmate_backend_request_duration_seconds",
			Help:    "Latency of registration backend calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		PollerDegraded: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "hackmate_poller_degraded",
			Help: "1 while a polling loop runs at its degraded cadence",
		}, []string{"loop"}),
		LivePreviews: factory.NewGauge(prometheus.GaugeOpts{
			Name: "hackmate_form_live_previews",
			Help: "Proof image previews currently allocated",
		}),
		BackendRequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "hackmate_devbackend_requests_total",
			Help: "Requests served by the development backend",
		}, []string{"route", "status"}),
	}
}

func (m *Metrics) IncrementSubmissions(outcome string) {
	if m == nil {
		return
	}
	m.SubmissionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementPolls(trigger, outcome string) {
	if m == nil {
		return
	}
	m.PollsTotal.WithLabelValues(trigger, outcome).Inc()
}

func (m *Metrics) IncrementTransitions(from, to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncrementIgnoredReads(reason string) {
	if m == nil {
		return
	}
	m.IgnoredReadsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveBackendLatency(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.BackendLatency.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) SetPollerDegraded(loop string, degraded bool) {
	if m == nil {
		return
	}
	v := 0.0
	if degraded {
		v = 1
	}
	m.PollerDegraded.WithLabelValues(loop).Set(v)
}

func (m *Metrics) AddLivePreviews(delta int) {
	if m == nil {
		return
	}
	m.LivePreviews.Add(float64(delta))
}

func (m *Metrics) IncrementBackendRequests(route, status string) {
	if m == nil {
		return
	}
	m.BackendRequestTotal.WithLabelValues(route, status).Inc()
}
