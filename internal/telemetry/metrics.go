// Package telemetry wires Prometheus instrumentation for kbcoord, the same
// "metrics namespace + chi middleware" shape the teacher's gateway package
// uses (pkg/gateway/metrics, pkg/gateway/middleware).
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "kbcoord"

// Metrics holds every Prometheus collector kbcoord registers. All metric
// names carry the kbcoord_ prefix; HTTP metrics mirror the teacher's
// gateway_http_* shape, domain metrics are specific to the coordination
// operations in spec.md §4.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// OperationsTotal counts kb.* calls reported through ObserveOperation,
	// labeled by module ("registry", "job", "stream", "status",
	// "rpcserver", "rpcclient", "query") and outcome ("ok" or an
	// apperror.ErrorType string).
	OperationsTotal *prometheus.CounterVec

	// OperationDuration observes wall-clock latency per module/op, not
	// broken out by outcome to keep cardinality bounded.
	OperationDuration *prometheus.HistogramVec

	// RetryAttemptsTotal is labeled by operation name for retry attempts
	// beyond the first.
	RetryAttemptsTotal *prometheus.CounterVec

	// The domain collectors above and below are registered only: no
	// package in this module calls ObserveOperation, and internal/retry,
	// internal/kb/reconcile and internal/store do not update the retry,
	// reconcile or pool collectors. Only the HTTP collectors change.
	ReconcileRunsTotal   *prometheus.CounterVec
	ReconcileRowsChanged *prometheus.CounterVec

	DBPoolOpenConnections prometheus.Gauge
	DBPoolInUse           prometheus.Gauge
}

// NewMetricsWithRegistry registers every collector against registry and
// returns the handle. Tests use a fresh prometheus.NewRegistry() so
// repeated construction across test cases never collides.
func NewMetricsWithRegistry(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests served by the introspection API, by method, endpoint, and status.",
		}, []string{"method", "endpoint", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds, by endpoint, method, and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint", "method", "status"}),

		HTTPRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being served.",
		}),

		OperationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kb_operations_total",
			Help:      "Total coordination-store operations, by module, operation, and outcome.",
		}, []string{"module", "operation", "outcome"}),

		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kb_operation_duration_seconds",
			Help:      "Coordination-store operation latency in seconds, by module and operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"module", "operation"}),

		RetryAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Retry attempts issued by internal/retry, by operation.",
		}, []string{"operation"}),

		ReconcileRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Reconciler passes, by outcome (ok or error).",
		}, []string{"outcome"}),

		ReconcileRowsChanged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_rows_changed_total",
			Help:      "Satellite rows inserted or deleted by the reconciler, by kind and direction (grow/shrink/retire).",
		}, []string{"kind", "direction"}),

		DBPoolOpenConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_open_connections",
			Help:      "Open connections in the database/sql connection pool.",
		}),

		DBPoolInUse: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_pool_in_use_connections",
			Help:      "Connections currently checked out of the database/sql connection pool.",
		}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.OperationsTotal,
		m.OperationDuration,
		m.RetryAttemptsTotal,
		m.ReconcileRunsTotal,
		m.ReconcileRowsChanged,
		m.DBPoolOpenConnections,
		m.DBPoolInUse,
	)
	return m
}

// NewMetrics registers against a fresh private prometheus.Registry, not
// prometheus.DefaultRegisterer. cmd/kbcoordd calls NewMetricsWithRegistry
// instead, so it can serve the same registry on /metrics.
func NewMetrics() *Metrics {
	m := NewMetricsWithRegistry(prometheus.NewRegistry())
	return m
}

// ObserveOperation records one kb.* call's outcome and latency. module is
// the package name ("job", "stream", ...), operation is the method name
// ("push", "claim", ...), and err is the result of the call (nil for
// success). A caller passes apperror.GetType(err) string via outcome when
// err is non-nil, "ok" otherwise. Only the telemetry tests call it.
func (m *Metrics) ObserveOperation(module, operation, outcome string, seconds float64) {
	m.OperationsTotal.WithLabelValues(module, operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(module, operation).Observe(seconds)
}
