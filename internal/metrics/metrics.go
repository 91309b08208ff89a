// Package metrics holds the Prometheus collectors for the service. All
// Record methods are safe on a nil *Metrics, which disables recording.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/social-studio/internal/extract"
)

const namespace = "studio"

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	extractEvents *prometheus.CounterVec

	completionTotal    *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	tokensTotal        *prometheus.CounterVec
	costTotal          *prometheus.CounterVec

	workflowTotal *prometheus.CounterVec

	imageJobsTotal *prometheus.CounterVec
	imagePolls     prometheus.Histogram
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"method", "route"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		}),
		extractEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "events_total",
			Help:      "Extraction events by schema, field, kind and layer.",
		}, []string{"schema", "field", "kind", "layer"}),
		completionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "calls_total",
			Help:      "Completion calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		completionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "duration_seconds",
			Help:      "Completion call duration in seconds, retries included.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		tokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "completion",
			Name:      "tokens_total",
			Help:      "Token usage by provider, model and direction.",
		}, []string{"provider", "model", "direction"}),
		costTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cost_usd_total",
			Help:      "Estimated upstream spend in USD by provider and model.",
		}, []string{"provider", "model"}),
		workflowTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workflow",
			Name:      "runs_total",
			Help:      "Workflow runs by kind and outcome.",
		}, []string{"kind", "outcome"}),
		imageJobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "image",
			Name:      "jobs_total",
			Help:      "Image jobs by outcome.",
		}, []string{"outcome"}),
		imagePolls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "image",
			Name:      "polls",
			Help:      "Status polls per image job.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 34, 60},
		}),
	}

	m.registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.extractEvents,
		m.completionTotal,
		m.completionDuration,
		m.tokensTotal,
		m.costTotal,
		m.workflowTotal,
		m.imageJobsTotal,
		m.imagePolls,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts requests by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		m.requestTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// ObserveExtraction is an extract.Observer that counts non-resolution events
// and resolutions by layer.
func (m *Metrics) ObserveExtraction(ev extract.Event) {
	if m == nil {
		return
	}
	m.extractEvents.WithLabelValues(ev.Schema, ev.Field, string(ev.Kind), string(ev.Layer)).Inc()
}

// RecordCompletion counts one completion call.
func (m *Metrics) RecordCompletion(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.completionTotal.WithLabelValues(provider, outcome).Inc()
	m.completionDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordTokens adds prompt and completion token usage.
func (m *Metrics) RecordTokens(provider, model string, in, out int64) {
	if m == nil {
		return
	}
	if model == "" {
		model = "unknown"
	}
	if in > 0 {
		m.tokensTotal.WithLabelValues(provider, model, "in").Add(float64(in))
	}
	if out > 0 {
		m.tokensTotal.WithLabelValues(provider, model, "out").Add(float64(out))
	}
}

// RecordCost adds estimated spend. Non-positive amounts are ignored.
func (m *Metrics) RecordCost(provider, model string, usd float64) {
	if m == nil || usd <= 0 {
		return
	}
	if model == "" {
		model = "unknown"
	}
	m.costTotal.WithLabelValues(provider, model).Add(usd)
}

// RecordWorkflow counts one workflow run.
func (m *Metrics) RecordWorkflow(kind, outcome string) {
	if m == nil {
		return
	}
	m.workflowTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordImageJob counts one finished image job and its poll count.
func (m *Metrics) RecordImageJob(outcome string, polls int) {
	if m == nil {
		return
	}
	m.imageJobsTotal.WithLabelValues(outcome).Inc()
	if polls > 0 {
		m.imagePolls.Observe(float64(polls))
	}
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
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
