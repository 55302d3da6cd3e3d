package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	oracleCallTotal       *prometheus.CounterVec
	oracleCallDuration    *prometheus.HistogramVec
	proposalsDroppedTotal prometheus.Counter

	engineRunTotal    *prometheus.CounterVec
	engineRunDuration prometheus.Histogram

	catalogCapabilities     prometheus.Gauge
	catalogMissingArtifacts prometheus.Gauge

	connectedObservers prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			registry: prometheus.NewRegistry(),
			requestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "run_requests_total",
					Help: "Total run requests by outcome class.",
				},
				[]string{"outcome"},
			),
			requestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "run_request_duration_seconds",
					Help:    "End-to-end request duration in seconds by outcome class.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"outcome"},
			),
			oracleCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "oracle_calls_total",
					Help: "Total planning oracle calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			oracleCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "oracle_call_duration_seconds",
					Help:    "Planning oracle call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			proposalsDroppedTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "oracle_proposals_dropped_total",
					Help: "Total extra oracle selections dropped beyond the first.",
				},
			),
			engineRunTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "engine_runs_total",
					Help: "Total sandbox invocations by result kind.",
				},
				[]string{"kind"},
			),
			engineRunDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "engine_run_duration_seconds",
					Help:    "Sandbox invocation duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			catalogCapabilities: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "catalog_capabilities",
					Help: "Number of capabilities in the loaded catalog.",
				},
			),
			catalogMissingArtifacts: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "catalog_missing_artifacts",
					Help: "Number of catalog capabilities whose artifact is currently missing.",
				},
			),
			connectedObservers: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "event_observers_connected",
					Help: "Number of websocket observers currently connected.",
				},
			),
		}

		m.registry.MustRegister(
			m.requestTotal,
			m.requestDuration,
			m.oracleCallTotal,
			m.oracleCallDuration,
			m.proposalsDroppedTotal,
			m.engineRunTotal,
			m.engineRunDuration,
			m.catalogCapabilities,
			m.catalogMissingArtifacts,
			m.connectedObservers,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler returns an HTTP handler for the metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(getMetrics().registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

func RecordRequest(outcome string, duration time.Duration) {
	m := getMetrics()
	m.requestTotal.WithLabelValues(outcome).Inc()
	m.requestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func RecordOracleCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.oracleCallTotal.WithLabelValues(provider, status).Inc()
	m.oracleCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func AddDroppedProposals(count int) {
	if count <= 0 {
		return
	}
	getMetrics().proposalsDroppedTotal.Add(float64(count))
}

func RecordEngineRun(kind string, duration time.Duration) {
	m := getMetrics()
	m.engineRunTotal.WithLabelValues(kind).Inc()
	m.engineRunDuration.Observe(duration.Seconds())
}

func SetCatalogSize(count int) {
	getMetrics().catalogCapabilities.Set(float64(count))
}

func SetMissingArtifacts(count int) {
	getMetrics().catalogMissingArtifacts.Set(float64(count))
}

func SetConnectedObservers(count int) {
	getMetrics().connectedObservers.Set(float64(count))
}
