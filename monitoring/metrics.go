package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agridash"

// Metrics holds the service's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	predictions       *prometheus.CounterVec
	predictionLatency prometheus.Histogram
	modelAvailable    prometheus.Gauge
	artifactsStale    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Prediction attempts by outcome and error kind.",
		}, []string{"outcome", "kind"}),
		predictionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent in the prediction pipeline.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}),
		modelAvailable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_available",
			Help:      "1 when an artifact bundle is loaded.",
		}),
		artifactsStale: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "artifacts_stale",
			Help:      "1 when the bundle on disk no longer matches the one being served.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.predictions,
		m.predictionLatency,
		m.modelAvailable,
		m.artifactsStale,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObservePrediction records one prediction. An empty kind means success.
func (m *Metrics) ObservePrediction(kind string, elapsed time.Duration) {
	outcome := "success"
	if kind != "" {
		outcome = "error"
	}
	m.predictions.WithLabelValues(outcome, kind).Inc()
	m.predictionLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) SetModelAvailable(available bool) {
	m.modelAvailable.Set(boolValue(available))
}

func (m *Metrics) SetArtifactsStale(stale bool) {
	m.artifactsStale.Set(boolValue(stale))
}

// RegisterCacheStats exposes prediction cache hit and miss counts read from stats.
func (m *Metrics) RegisterCacheStats(stats func() (hits, misses uint64)) {
	m.registry.MustRegister(
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_hits_total",
			Help:      "Predictions served from the cache.",
		}, func() float64 {
			hits, _ := stats()
			return float64(hits)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_cache_misses_total",
			Help:      "Predictions that missed the cache.",
		}, func() float64 {
			_, misses := stats()
			return float64(misses)
		}),
	)
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
