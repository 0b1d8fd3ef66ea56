package shared

import (
	"context"
	"time"
)

// ExecutionConfig carries the per-execution budget and the caller's
// resolved permission set. It is threaded from the bridge down to whichever
// backend the dispatcher selects.
type ExecutionConfig struct {
	Timeout     time.Duration
	MemoryLimit int
	Permissions Permissions
	// Input is delivered to the instance as its execution payload by the
	// filter backend (packet bytes). The dynamic-language backend feeds
	// the stored source, not Input, to its interpreter's stdin, and the
	// portable-bytecode backend does not read Input.
	Input []byte
}

// ExecutionResult is the uniform result shape returned by every backend,
// independent of how the backend internally represents success/failure.
type ExecutionResult struct {
	Success       bool
	Output        []byte
	Error         string
	ExecutionTime time.Duration
	MemoryUsed    int
}

// Backend is the shared lifecycle contract every runtime implements:
// compile source into a module, instantiate a module into a running
// instance, execute that instance under a budget, and destroy it. All four
// steps are idempotent-safe to call concurrently across different
// module/instance ids; a single id is never touched by two goroutines at
// once because the bridge controller's Submit drives one id's lifecycle
// serially.
type Backend interface {
	Compile(ctx context.Context, code []byte, lang Language) (ModuleId, error)
	Instantiate(ctx context.Context, module ModuleId) (InstanceId, error)
	Execute(ctx context.Context, instance InstanceId, cfg ExecutionConfig) (ExecutionResult, error)
	Destroy(ctx context.Context, instance InstanceId) error

	// Metrics reports the current snapshot for get_performance_metrics.
	Metrics() RuntimeMetrics
	// Type identifies which of the three backends this is, for the
	// dispatcher and the bridge's get_available_runtimes.
	Type() RuntimeType
}
