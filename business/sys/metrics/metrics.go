// Package metrics constructs the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "ethview"

// Metrics holds the set of collectors maintained by the service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	requests prometheus.Counter
	errors   prometheus.Counter
	panics   prometheus.Counter
	events   *prometheus.CounterVec
	fetches  *prometheus.CounterVec
	stale    *prometheus.CounterVec
	clients  prometheus.Gauge
}

// New constructs the collectors and registers them with the registry along
// with the go runtime and process collectors.
func New(reg prometheus.Registerer) *Metrics {
	m := Metrics{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Number of web requests handled.",
		}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Number of web requests that returned an error.",
		}),
		panics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panics_total",
			Help:      "Number of panics recovered by the web handlers.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_events_total",
			Help:      "Number of provider events received by the session.",
		}, []string{"event"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Number of provider requests issued by the session.",
		}, []string{"method", "outcome"}),
		stale: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_results_total",
			Help:      "Number of provider results discarded because newer state exists.",
		}, []string{"method"}),
		clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stream_clients",
			Help:      "Number of connected event stream clients.",
		}),
	}

	reg.MustRegister(
		m.requests,
		m.errors,
		m.panics,
		m.events,
		m.fetches,
		m.stale,
		m.clients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &m
}

// Request records a handled web request.
func (m *Metrics) Request() {
	if m == nil {
		return
	}
	m.requests.Inc()
}

// Error records a web request that failed.
func (m *Metrics) Error() {
	if m == nil {
		return
	}
	m.errors.Inc()
}

// Panic records a recovered panic.
func (m *Metrics) Panic() {
	if m == nil {
		return
	}
	m.panics.Inc()
}

// Event records a provider event.
func (m *Metrics) Event(name string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(name).Inc()
}

// Fetch records the outcome of a provider request.
func (m *Metrics) Fetch(method string, err error) {
	if m == nil {
		return
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.fetches.WithLabelValues(method, outcome).Inc()
}

// Stale records a provider result that was discarded.
func (m *Metrics) Stale(method string) {
	if m == nil {
		return
	}
	m.stale.WithLabelValues(method).Inc()
}

// StreamClients sets the number of connected event stream clients.
func (m *Metrics) StreamClients(n int) {
	if m == nil {
		return
	}
	m.clients.Set(float64(n))
}
