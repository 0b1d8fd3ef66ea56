package metrics

import (
	"testing"
	"time"
)

func TestRecordExecutionAccumulatesCounters(t *testing.T) {
	r := &Registry{startTime: time.Now()}

	r.RecordCompile("packet_filter")
	r.RecordExecution("packet_filter", 10*time.Millisecond, true)
	r.RecordExecution("packet_filter", 30*time.Millisecond, false)

	snap := r.Snapshot("packet_filter")
	if snap.Compiles != 1 {
		t.Fatalf("expected 1 compile, got %d", snap.Compiles)
	}
	if snap.Executions != 2 {
		t.Fatalf("expected 2 executions, got %d", snap.Executions)
	}
	if snap.Successes != 1 || snap.Failures != 1 {
		t.Fatalf("expected 1 success and 1 failure, got %d/%d", snap.Successes, snap.Failures)
	}
	if snap.MinLatency != 10*time.Millisecond {
		t.Fatalf("expected min latency 10ms, got %v", snap.MinLatency)
	}
	if snap.MaxLatency != 30*time.Millisecond {
		t.Fatalf("expected max latency 30ms, got %v", snap.MaxLatency)
	}
	if snap.AverageLatency != 20*time.Millisecond {
		t.Fatalf("expected average latency 20ms, got %v", snap.AverageLatency)
	}
}

func TestSnapshotOfUnknownBackendIsZeroValue(t *testing.T) {
	r := &Registry{startTime: time.Now()}

	snap := r.Snapshot("portable_bytecode")
	if snap.Runtime != "portable_bytecode" {
		t.Fatalf("expected runtime name to be preserved, got %q", snap.Runtime)
	}
	if snap.Executions != 0 || snap.Compiles != 0 {
		t.Fatalf("expected zero counters for a backend that never reported, got %+v", snap)
	}
}

func TestRuntimesListsOnlyReportedBackends(t *testing.T) {
	r := &Registry{startTime: time.Now()}
	r.RecordExecution("dynamic_language", time.Millisecond, true)

	names := r.Runtimes()
	if len(names) != 1 || names[0] != "dynamic_language" {
		t.Fatalf("expected exactly [\"dynamic_language\"], got %v", names)
	}
}

func TestInitPrometheusIsIdempotentAndCountersFlowThrough(t *testing.T) {
	InitPrometheus("sandboxctl_test", nil)
	InitPrometheus("sandboxctl_test", nil)

	r := &Registry{startTime: time.Now()}
	r.RecordCompile("packet_filter")
	r.RecordExecution("packet_filter", 5*time.Millisecond, true)

	if PrometheusRegistry() == nil {
		t.Fatal("expected a non-nil registry after InitPrometheus")
	}

	families, err := PrometheusRegistry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var compiles float64
	for _, mf := range families {
		if mf.GetName() == "sandboxctl_test_compiles_total" {
			for _, m := range mf.GetMetric() {
				compiles += m.GetCounter().GetValue()
			}
		}
	}
	if compiles != 1 {
		t.Fatalf("expected 1 compile recorded in the Prometheus registry, got %v", compiles)
	}
}
