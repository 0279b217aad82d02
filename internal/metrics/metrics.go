// Package metrics provides Prometheus metrics for lawrag.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Indexing
	IndexRunsTotal    *prometheus.CounterVec
	ChunksIndexed     prometheus.Gauge
	IndexDegraded     prometheus.Gauge
	IndexDuration     prometheus.Histogram
	SkippedFilesTotal prometheus.Counter

	// Question answering
	RetrievalDuration *prometheus.HistogramVec
	AnswersTotal      *prometheus.CounterVec
	SessionsActive    prometheus.Gauge

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		IndexRunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lawrag_index_runs_total",
			Help: "Total number of index builds by outcome",
		}, []string{"outcome"}),
		ChunksIndexed: f.NewGauge(prometheus.GaugeOpts{
			Name: "lawrag_chunks_indexed",
			Help: "Number of chunks in the last built index",
		}),
		IndexDegraded: f.NewGauge(prometheus.GaugeOpts{
			Name: "lawrag_index_degraded",
			Help: "1 when the current index holds placeholder vectors",
		}),
		IndexDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lawrag_index_duration_seconds",
			Help:    "Duration of index builds in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
		}),
		SkippedFilesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "lawrag_skipped_files_total",
			Help: "Statute files that could not be read",
		}),
		RetrievalDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lawrag_retrieval_duration_seconds",
			Help:    "Duration of similarity retrieval in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"status"}),
		AnswersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lawrag_answers_total",
			Help: "Answers produced by synthesizer and outcome",
		}, []string{"synthesizer", "outcome"}),
		SessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "lawrag_sessions_active",
			Help: "Number of open chat sessions",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lawrag_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lawrag_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordIndex records an index build.
func (m *Metrics) RecordIndex(outcome string, chunks int, degraded bool, duration time.Duration) {
	m.IndexRunsTotal.WithLabelValues(outcome).Inc()
	m.IndexDuration.Observe(duration.Seconds())
	if outcome != "success" {
		return
	}
	m.ChunksIndexed.Set(float64(chunks))
	if degraded {
		m.IndexDegraded.Set(1)
	} else {
		m.IndexDegraded.Set(0)
	}
}

// RecordRetrieval records one retrieval call.
func (m *Metrics) RecordRetrieval(status string, duration time.Duration) {
	m.RetrievalDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordAnswer records one synthesized answer.
func (m *Metrics) RecordAnswer(synthesizer, outcome string) {
	m.AnswersTotal.WithLabelValues(synthesizer, outcome).Inc()
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}
