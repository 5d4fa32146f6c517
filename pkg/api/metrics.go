package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ssargent/cachescan/pkg/catalog"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API. It also observes scans
// started through the API.
type Metrics struct {
	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Decode metrics
	decodesTotal *prometheus.CounterVec

	// Scan metrics
	scanSlotsTotal    *prometheus.CounterVec
	scanOutcomesTotal *prometheus.CounterVec
	scansTotal        *prometheus.CounterVec

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates all metrics on the default registerer
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics on reg
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachescan_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cachescan_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cachescan_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		decodesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachescan_decodes_total",
				Help: "Records decoded through the API, by record kind and outcome",
			},
			[]string{"record", "outcome"},
		),

		scanSlotsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachescan_scan_slots_total",
				Help: "Directory slots read by scans",
			},
			[]string{"valid"},
		),

		scanOutcomesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachescan_scan_outcomes_total",
				Help: "Header decode outcomes produced by scans",
			},
			[]string{"outcome"},
		),

		scansTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachescan_scans_total",
				Help: "Scans started through the API",
			},
			[]string{"status"},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cachescan_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDecode records one decode request
func (m *Metrics) RecordDecode(record string, outcome catalog.Outcome) {
	m.decodesTotal.WithLabelValues(record, string(outcome)).Inc()
}

// RecordScan records the end of a scan started through the API
func (m *Metrics) RecordScan(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.scansTotal.WithLabelValues(status).Inc()
}

// ObserveSlot counts a slot read by a scan
func (m *Metrics) ObserveSlot(valid bool) {
	m.scanSlotsTotal.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

// ObserveOutcome counts a scan finding
func (m *Metrics) ObserveOutcome(outcome catalog.Outcome) {
	m.scanOutcomesTotal.WithLabelValues(string(outcome)).Inc()
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Record request in flight
		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Create response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// InstrumentAuthMiddleware instruments the authentication middleware
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasAPIKey := r.Header.Get("X-API-Key") != ""

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next(h).ServeHTTP(rw, r)

			if hasAPIKey {
				m.RecordAuthRequest(rw.statusCode != http.StatusUnauthorized)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
