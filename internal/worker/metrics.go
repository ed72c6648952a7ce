package worker

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/thebtf/designpartner/internal/orchestrator"
	"github.com/thebtf/designpartner/internal/worker/sse"
)

// Metrics holds the Prometheus metrics served on /metrics.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	transitions *prometheus.CounterVec
	turnErrors  *prometheus.CounterVec
}

// NewMetrics creates metrics on a private registry. SSE client counts are
// read from b on every scrape when b is non-nil.
func NewMetrics(b *sse.Broadcaster) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "designpartner_http_requests_total",
			Help: "HTTP requests by route, method and status code",
		}, []string{"route", "method", "code"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "designpartner_http_request_duration_seconds",
			Help: "HTTP request latency in seconds",
			// Turns wait on the provider.
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"route"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "designpartner_state_transitions_total",
			Help: "Conversation state transitions by target state",
		}, []string{"state"}),
		turnErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "designpartner_turn_errors_total",
			Help: "Failed turns by error class",
		}, []string{"class"}),
	}

	if b != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "designpartner_sse_clients",
			Help: "Connected SSE clients",
		}, func() float64 { return float64(b.ClientCount()) })
	}
	return m
}

// ObserveState counts a state transition. It matches the orchestrator's
// state hook signature.
func (m *Metrics) ObserveState(_ string, s orchestrator.State) {
	m.transitions.WithLabelValues(s.String()).Inc()
}

func (m *Metrics) turnFailed(class string) {
	m.turnErrors.WithLabelValues(class).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// instrument records request counts and latency keyed by the chi route
// pattern, so session identifiers never become label values.
func (m *Metrics) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
