// Package metrics collects per-runtime compile and execution counters that
// the bridge controller records on every Submit. get_status and
// get_performance_metrics do not read them; those report the controller's
// instance map and each backend's own RuntimeMetrics.
//
// Two metric stores coexist here:
//
//  1. The in-process Registry (atomic counters per runtime, in a sync.Map),
//     readable through Snapshot and Runtimes.
//  2. A Prometheus registry (prometheus.go) mirroring the same counters as
//     CounterVec/HistogramVec collectors.
//
// Nothing here is ever served over HTTP: there is no scrape endpoint and
// no dashboard. The Prometheus registry exists so the same counters are
// queryable through the prometheus client API in-process, not to be
// exported.
//
// RecordExecution is called from the bridge controller on every submission
// and stays on atomics only, avoiding a lock on the hot path; the sync.Map
// holding per-runtime entries is read-heavy and write-once-per-new-runtime.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// BackendMetrics tracks one backend's compile/execute counters.
type BackendMetrics struct {
	Compiles     atomic.Int64
	Executions   atomic.Int64
	Successes    atomic.Int64
	Failures     atomic.Int64
	TotalLatency atomic.Int64 // nanoseconds
	MinLatency   atomic.Int64
	MaxLatency   atomic.Int64
}

// Registry holds one BackendMetrics per runtime, built lazily the first
// time that runtime reports.
type Registry struct {
	backends  sync.Map // string (runtime name) -> *BackendMetrics
	startTime time.Time
}

var global = &Registry{startTime: time.Now()}

// Global returns the process-wide registry.
func Global() *Registry { return global }

// StartTime reports when the registry was constructed, for uptime reporting.
func (r *Registry) StartTime() time.Time { return r.startTime }

const maxLatencySentinel = int64(^uint64(0) >> 1)

func (r *Registry) backendFor(runtime string) *BackendMetrics {
	if v, ok := r.backends.Load(runtime); ok {
		return v.(*BackendMetrics)
	}
	bm := &BackendMetrics{}
	bm.MinLatency.Store(maxLatencySentinel)
	actual, _ := r.backends.LoadOrStore(runtime, bm)
	return actual.(*BackendMetrics)
}

// RecordCompile increments a backend's compile counter.
func (r *Registry) RecordCompile(runtime string) {
	r.backendFor(runtime).Compiles.Add(1)
	recordPrometheusCompile(runtime)
}

// RecordExecution folds one execution's latency and outcome into both the
// named backend's counters and the Prometheus registry.
func (r *Registry) RecordExecution(runtime string, latency time.Duration, success bool) {
	bm := r.backendFor(runtime)
	bm.Executions.Add(1)
	if success {
		bm.Successes.Add(1)
	} else {
		bm.Failures.Add(1)
	}
	nanos := latency.Nanoseconds()
	bm.TotalLatency.Add(nanos)
	updateMin(&bm.MinLatency, nanos)
	updateMax(&bm.MaxLatency, nanos)

	recordPrometheusExecution(runtime, latency, success)
}

// BackendSnapshot is the JSON-friendly view of BackendMetrics returned by
// Snapshot.
type BackendSnapshot struct {
	Runtime        string        `json:"runtime"`
	Compiles       int64         `json:"compiles"`
	Executions     int64         `json:"executions"`
	Successes      int64         `json:"successes"`
	Failures       int64         `json:"failures"`
	AverageLatency time.Duration `json:"average_latency"`
	MinLatency     time.Duration `json:"min_latency"`
	MaxLatency     time.Duration `json:"max_latency"`
}

// Snapshot returns a point-in-time view of one backend's counters, or the
// zero value if that backend has never reported.
func (r *Registry) Snapshot(runtime string) BackendSnapshot {
	v, ok := r.backends.Load(runtime)
	if !ok {
		return BackendSnapshot{Runtime: runtime}
	}
	bm := v.(*BackendMetrics)

	execs := bm.Executions.Load()
	var avgNanos int64
	if execs > 0 {
		avgNanos = bm.TotalLatency.Load() / execs
	}
	minNanos := bm.MinLatency.Load()
	if minNanos == maxLatencySentinel {
		minNanos = 0
	}

	return BackendSnapshot{
		Runtime:        runtime,
		Compiles:       bm.Compiles.Load(),
		Executions:     execs,
		Successes:      bm.Successes.Load(),
		Failures:       bm.Failures.Load(),
		AverageLatency: time.Duration(avgNanos),
		MinLatency:     time.Duration(minNanos),
		MaxLatency:     time.Duration(bm.MaxLatency.Load()),
	}
}

// Runtimes returns the names of every backend that has reported at least
// once, in no particular order.
func (r *Registry) Runtimes() []string {
	var names []string
	r.backends.Range(func(k, _ interface{}) bool {
		names = append(names, k.(string))
		return true
	})
	return names
}

func updateMin(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value >= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}

func updateMax(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value <= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}
