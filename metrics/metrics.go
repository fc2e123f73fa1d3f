// Package metrics holds the Prometheus collectors for catalog calls and
// resolutions. Collectors live on a private registry so several instances
// can coexist in one process.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry        *prometheus.Registry
	CatalogRequests *prometheus.CounterVec
	Resolutions     *prometheus.CounterVec
	BatchItems      prometheus.Histogram
	ResolveDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CatalogRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamfinder_catalog_requests_total",
				Help: "Outbound secondary catalog requests by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		Resolutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "streamfinder_resolutions_total",
				Help: "Resolutions by path (single, batch) and resulting provider",
			},
			[]string{"path", "provider"},
		),
		BatchItems: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "streamfinder_batch_items",
				Help:    "Number of items per batch resolution request",
				Buckets: []float64{1, 5, 10, 20, 50, 100, 200},
			},
		),
		ResolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "streamfinder_resolve_duration_seconds",
				Help:    "Time spent resolving a single track or a whole batch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),
	}

	m.registry.MustRegister(
		m.CatalogRequests,
		m.Resolutions,
		m.BatchItems,
		m.ResolveDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// The Record helpers accept a nil receiver so components can run without
// metrics in tests.

func (m *Metrics) RecordCatalogRequest(operation, status string) {
	if m == nil {
		return
	}
	m.CatalogRequests.WithLabelValues(operation, status).Inc()
}

func (m *Metrics) RecordResolution(path, provider string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(path, provider).Inc()
}

func (m *Metrics) RecordBatchSize(n int) {
	if m == nil {
		return
	}
	m.BatchItems.Observe(float64(n))
}

func (m *Metrics) RecordDuration(path string, d time.Duration) {
	if m == nil {
		return
	}
	m.ResolveDuration.WithLabelValues(path).Observe(d.Seconds())
}
