package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics bundles the counters/histograms the process exposes on
// /metrics, registered against a private registry the way
// cmd/dex/serve.go registers grpcMetrics/the Go collector against its
// own prometheus.Registry rather than the global default one.
type metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rotations   prometheus.Counter
	rateLimited prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hashrand_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hashrand_http_request_duration_seconds",
			Help:    "HTTP request latency by method and path.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hashrand_token_rotations_total",
			Help: "Completed PERIOD-2/3 key rotations.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hashrand_rate_limit_rejections_total",
			Help: "Requests rejected by the magic-link issuance rate limiter.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.rotations, m.rateLimited, prometheus.NewGoCollector())
	return m
}

func (m *metrics) observe(method, path string, status int, d time.Duration) {
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.duration.WithLabelValues(method, path).Observe(d.Seconds())
}

func (s *Server) metricsHandler() http.Handler {
	return promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})
}
