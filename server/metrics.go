package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rental_pricer"

// Metrics are the API's Prometheus instruments.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	EmptyPanels     prometheus.Counter
	PanelSize       prometheus.Histogram
	DatasetsLoaded  prometheus.Gauge
	CacheHits       prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics registers the API metrics on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests by endpoint and status code",
		}, []string{"endpoint", "code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		EmptyPanels: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "empty_panels_total",
			Help:      "Evaluations that found no usable comparables",
		}),
		PanelSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "panel_size",
			Help:      "Number of comparables per evaluation",
			Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 250},
		}),
		DatasetsLoaded: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "datasets",
			Name:      "loaded",
			Help:      "Datasets held in memory",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cache_hits_total",
			Help:      "Evaluations served from the evaluation cache",
		}),
		registry: reg,
	}
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
