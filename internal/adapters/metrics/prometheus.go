// Package metrics provides Prometheus metrics collection.
package metrics

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jobrunner/leafsync/internal/ports/output"
)

var _ output.MetricsCollector = (*Collector)(nil)

// Collector implements the MetricsCollector port using Prometheus.
type Collector struct {
	boundaryCalls       *prometheus.CounterVec
	boundaryDuration    *prometheus.HistogramVec
	activeMaps          prometheus.Gauge
	handles             prometheus.Gauge
	backgroundErrors    *prometheus.CounterVec
	events              *prometheus.CounterVec
	presetsLoaded       prometheus.Gauge
	storageOperations   *prometheus.CounterVec
	storageDuration     *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewCollector creates a collector registered with the default registry.
func NewCollector(namespace string) *Collector {
	return NewCollectorWith(namespace, prometheus.DefaultRegisterer)
}

// NewCollectorWith creates a collector registered with reg.
func NewCollectorWith(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = "leafsync"
	}
	factory := promauto.With(reg)

	return &Collector{
		boundaryCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runtime_calls_total",
				Help:      "Total number of calls into the map runtime",
			},
			[]string{"method", "status"},
		),

		boundaryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "runtime_call_duration_seconds",
				Help:      "Runtime call duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		activeMaps: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "maps_active",
				Help:      "Number of live maps",
			},
		),

		handles: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "layer_handles",
				Help:      "Number of layers materialized in runtimes",
			},
		),

		backgroundErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "background_errors_total",
				Help:      "Failures of fire-and-forget runtime calls",
			},
			[]string{"method"},
		),

		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Runtime events relayed to listeners",
			},
			[]string{"event"},
		),

		presetsLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "presets_loaded",
				Help:      "Number of loaded map presets",
			},
		),

		storageOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_operations_total",
				Help:      "Total number of storage operations",
			},
			[]string{"operation", "status"},
		),

		storageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_duration_seconds",
				Help:      "Storage operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// IncBoundaryCalls increments the runtime call counter.
func (c *Collector) IncBoundaryCalls(method string, success bool) {
	c.boundaryCalls.WithLabelValues(method, successLabel(success)).Inc()
}

// ObserveBoundaryDuration records runtime call duration.
func (c *Collector) ObserveBoundaryDuration(method string, duration time.Duration) {
	c.boundaryDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// SetActiveMaps sets the number of live maps.
func (c *Collector) SetActiveMaps(count int) {
	c.activeMaps.Set(float64(count))
}

// AddHandles adjusts the outstanding handle gauge.
func (c *Collector) AddHandles(delta int) {
	c.handles.Add(float64(delta))
}

// IncBackgroundErrors increments the detached call failure counter.
func (c *Collector) IncBackgroundErrors(method string) {
	c.backgroundErrors.WithLabelValues(method).Inc()
}

// IncEvents increments the relayed event counter.
func (c *Collector) IncEvents(name string) {
	c.events.WithLabelValues(name).Inc()
}

// SetPresetsLoaded sets the number of loaded presets.
func (c *Collector) SetPresetsLoaded(count int) {
	c.presetsLoaded.Set(float64(count))
}

// IncStorageOperations increments storage operation counter.
func (c *Collector) IncStorageOperations(operation string, success bool) {
	c.storageOperations.WithLabelValues(operation, successLabel(success)).Inc()
}

// ObserveStorageDuration records storage operation duration.
func (c *Collector) ObserveStorageDuration(operation string, duration time.Duration) {
	c.storageDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncHTTPRequests increments the HTTP request counter.
func (c *Collector) IncHTTPRequests(method, path, status string) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
}

// ObserveHTTPDuration records HTTP request duration.
func (c *Collector) ObserveHTTPDuration(method, path string, duration time.Duration) {
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns HTTP middleware for metrics collection.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status code
		wrapped := &statusResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		path := routeTemplate(r)
		status := statusToString(wrapped.statusCode)

		c.IncHTTPRequests(r.Method, path, status)
		c.ObserveHTTPDuration(r.Method, path, duration)
	})
}

type statusResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streams working behind the middleware.
func (w *statusResponseWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// routeTemplate labels a request by its route template, so map and layer
// ids do not blow up label cardinality.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

func successLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// statusToString converts HTTP status code to string category.
func statusToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
