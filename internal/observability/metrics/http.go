package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	queryRequestsTotal     *prometheus.CounterVec
	queryConfidence        *prometheus.HistogramVec
	queryEvidenceItems     *prometheus.HistogramVec
	queryInsufficientTotal *prometheus.CounterVec
	queryDuration          *prometheus.HistogramVec
	branchFailuresTotal    *prometheus.CounterVec
	regenerationsTotal     *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bqa",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bqa",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "bqa",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queryRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bqa",
			Subsystem: "query",
			Name:      "requests_total",
			Help:      "Total completed query requests by route.",
		},
		[]string{"service", "route"},
	)
	queryConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bqa",
			Subsystem: "query",
			Name:      "confidence",
			Help:      "Distribution of confidence scores per completed query.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"service", "route"},
	)
	queryEvidenceItems := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bqa",
			Subsystem: "query",
			Name:      "evidence_items",
			Help:      "Distribution of evidence items per completed query.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service", "route"},
	)
	queryInsufficientTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bqa",
			Subsystem: "query",
			Name:      "insufficient_total",
			Help:      "Total queries that ended in an uncertainty response.",
		},
		[]string{"service", "route"},
	)
	queryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bqa",
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Query pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "route"},
	)
	branchFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bqa",
			Subsystem: "query",
			Name:      "branch_failures_total",
			Help:      "Total evidence branch failures by branch kind.",
		},
		[]string{"service", "branch"},
	)
	regenerationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bqa",
			Subsystem: "query",
			Name:      "ir_regenerations_total",
			Help:      "Total intermediate representation regeneration attempts.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		queryRequestsTotal,
		queryConfidence,
		queryEvidenceItems,
		queryInsufficientTotal,
		queryDuration,
		branchFailuresTotal,
		regenerationsTotal,
	)

	return &HTTPServerMetrics{
		registry:               registry,
		requestTotal:           requestTotal,
		requestDuration:        requestDuration,
		requestInFlight:        requestInFlight,
		queryRequestsTotal:     queryRequestsTotal,
		queryConfidence:        queryConfidence,
		queryEvidenceItems:     queryEvidenceItems,
		queryInsufficientTotal: queryInsufficientTotal,
		queryDuration:          queryDuration,
		branchFailuresTotal:    branchFailuresTotal,
		regenerationsTotal:     regenerationsTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func (m *HTTPServerMetrics) RecordQueryObservation(service, route string, confidence float64, evidenceCount int, sufficient bool, duration time.Duration) {
	if route == "" {
		route = "unknown"
	}
	m.queryRequestsTotal.WithLabelValues(service, route).Inc()
	m.queryConfidence.WithLabelValues(service, route).Observe(confidence)
	m.queryEvidenceItems.WithLabelValues(service, route).Observe(float64(evidenceCount))
	m.queryDuration.WithLabelValues(service, route).Observe(duration.Seconds())

	if !sufficient {
		m.queryInsufficientTotal.WithLabelValues(service, route).Inc()
	}
}

func (m *HTTPServerMetrics) RecordBranchFailure(service, branch string) {
	if branch == "" {
		branch = "unknown"
	}
	m.branchFailuresTotal.WithLabelValues(service, branch).Inc()
}

func (m *HTTPServerMetrics) RecordIRRegeneration(service string) {
	m.regenerationsTotal.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
