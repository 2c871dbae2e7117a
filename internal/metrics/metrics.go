// Package metrics exposes Prometheus instrumentation for the
// orchestrator, the rail cascade, and the HTTP API, following the
// package-level promauto-vars-plus-Record*-functions shape of the
// teacher's monitoring.prometheus package.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	lineLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_line_processing_latency_milliseconds",
			Help:    "End-to-end latency of a line through the pipeline, in milliseconds.",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"final_status"},
	)

	lineTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_lines_total",
			Help: "Total lines processed, by terminal status.",
		},
		[]string{"status"},
	)

	agentInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_agent_invocations_total",
			Help: "Total agent invocations, by agent and outcome.",
		},
		[]string{"agent", "outcome"},
	)

	railAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_rail_attempts_total",
			Help: "Total rail execution attempts, by rail and outcome.",
		},
		[]string{"rail", "outcome"},
	)

	railETA = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_rail_eta_milliseconds",
			Help:    "Observed settlement ETA per rail, in milliseconds.",
			Buckets: []float64{100, 500, 1000, 5000, 15000, 60000, 300000, 900000},
		},
		[]string{"rail"},
	)

	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "orchestrator_circuit_breaker_state",
			Help: "Rail circuit breaker state (0=closed, 1=half-open, 2=open).",
		},
		[]string{"rail"},
	)

	activeLines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_active_lines",
			Help: "Lines currently held by the line semaphore.",
		},
	)

	apiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_api_request_duration_milliseconds",
			Help:    "HTTP API request duration in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"endpoint", "method", "status"},
	)
)

// Handler serves the Prometheus exposition format for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordLineCompletion(finalStatus string, latencyMs float64) {
	lineLatency.WithLabelValues(finalStatus).Observe(latencyMs)
	lineTotal.WithLabelValues(finalStatus).Inc()
}

func RecordAgentInvocation(agent, outcome string) {
	agentInvocations.WithLabelValues(agent, outcome).Inc()
}

func RecordRailAttempt(rail, outcome string, etaMs float64) {
	railAttempts.WithLabelValues(rail, outcome).Inc()
	railETA.WithLabelValues(rail).Observe(etaMs)
}

func SetCircuitBreakerState(rail string, state float64) {
	circuitBreakerState.WithLabelValues(rail).Set(state)
}

func SetActiveLines(count int) {
	activeLines.Set(float64(count))
}

// APIMiddleware wraps an HTTP handler to record per-endpoint request
// duration, mirroring the teacher's APIRequestMiddleware wrapper.
func APIMiddleware(endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		handler(wrapped, r)
		apiRequestDuration.WithLabelValues(endpoint, r.Method, http.StatusText(wrapped.statusCode)).Observe(float64(time.Since(start).Milliseconds()))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
