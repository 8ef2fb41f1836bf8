package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the stream resolver.
type Metrics struct {
	registry              *prometheus.Registry
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
	registeredStreams     prometheus.Gauge
	variantsResolvedTotal *prometheus.CounterVec
	segmentsServedTotal   prometheus.Counter
	decryptFailuresTotal  prometheus.Counter
}

// New creates and registers Prometheus metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resolver_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resolver_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	registeredStreams := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "resolver_registered_streams",
		Help: "Number of registered streams",
	})
	variantsResolvedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "resolver_variants_resolved_total",
		Help: "Total number of variants resolved from manifests",
	}, []string{"transport"})
	segmentsServedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resolver_segments_served_total",
		Help: "Total number of decrypted segments written to clients",
	})
	decryptFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "resolver_decrypt_failures_total",
		Help: "Total number of manifests or segments that failed to decode",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		registeredStreams,
		variantsResolvedTotal,
		segmentsServedTotal,
		decryptFailuresTotal,
	)

	return &Metrics{
		registry:              registry,
		requestsTotal:         requestsTotal,
		errorsTotal:           errorsTotal,
		registeredStreams:     registeredStreams,
		variantsResolvedTotal: variantsResolvedTotal,
		segmentsServedTotal:   segmentsServedTotal,
		decryptFailuresTotal:  decryptFailuresTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// SetRegisteredStreams sets the registered streams gauge.
func (m *Metrics) SetRegisteredStreams(n int) {
	m.registeredStreams.Set(float64(n))
}

// AddVariantsResolved adds n to the variants counter of transport.
func (m *Metrics) AddVariantsResolved(transport string, n int) {
	m.variantsResolvedTotal.WithLabelValues(transport).Add(float64(n))
}

// AddSegmentsServed adds n to the segments served counter.
func (m *Metrics) AddSegmentsServed(n int) {
	m.segmentsServedTotal.Add(float64(n))
}

// IncDecryptFailures increments the segment decryption failure counter.
func (m *Metrics) IncDecryptFailures() {
	m.decryptFailuresTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. registered streams).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
