package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// prometheusMetrics wraps the prometheus collectors mirroring Registry's
// counters, scoped to per-runtime labels.
type prometheusMetrics struct {
	registry *prometheus.Registry

	compilesTotal   *prometheus.CounterVec
	executionsTotal *prometheus.CounterVec
	executionLatency *prometheus.HistogramVec
	uptime          prometheus.GaugeFunc
}

var defaultBuckets = []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000}

var promMetrics *prometheusMetrics

// InitPrometheus constructs the Prometheus registry that mirrors the
// Registry counters. It is safe to call more than once; later calls
// replace the previous registry.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &prometheusMetrics{
		registry: registry,

		compilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compiles_total",
				Help:      "Total number of module compilations by runtime",
			},
			[]string{"runtime"},
		),

		executionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "executions_total",
				Help:      "Total number of executions by runtime and outcome",
			},
			[]string{"runtime", "status"},
		),

		executionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "execution_duration_milliseconds",
				Help:      "Duration of executions in milliseconds by runtime",
				Buckets:   buckets,
			},
			[]string{"runtime"},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the controller's metrics registry was initialized",
		},
		func() float64 {
			return time.Since(Global().StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.compilesTotal,
		pm.executionsTotal,
		pm.executionLatency,
		pm.uptime,
	)

	promMetrics = pm
}

func recordPrometheusCompile(runtime string) {
	if promMetrics == nil {
		return
	}
	promMetrics.compilesTotal.WithLabelValues(runtime).Inc()
}

func recordPrometheusExecution(runtime string, latency time.Duration, success bool) {
	if promMetrics == nil {
		return
	}
	status := "success"
	if !success {
		status = "failed"
	}
	promMetrics.executionsTotal.WithLabelValues(runtime, status).Inc()
	promMetrics.executionLatency.WithLabelValues(runtime).Observe(float64(latency.Milliseconds()))
}

// PrometheusRegistry returns the underlying Prometheus registry for tests or
// in-process inspection. It returns nil until InitPrometheus has run.
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
