package dispatcher

import (
	"sync"

	"github.com/oriys/nova/internal/dynamic"
	"github.com/oriys/nova/internal/shared"
)

const (
	defaultDynamicAvgMs   = 1000.0
	defaultBytecodeAvgMs  = 2000.0
	defaultSuccessRate    = 1.0
)

type workloadKey struct {
	runtime  shared.RuntimeType
	workload dynamic.WorkloadType
}

// PerformanceHistory tracks a per-(runtime, workload) moving average of
// execution time and success rate, seeded with the same optimistic
// defaults scheduler.rs uses (1000ms for the fast backend, 2000ms for the
// safe one) until real observations replace them.
//
// Ported from next-rc's scheduler.rs::PerformanceHistory /
// record_execution_result; the single RWMutex in place of parking_lot's
// RwLock matches this package's scale (a handful of updates per second,
// never a hot path next to actual execution).
type PerformanceHistory struct {
	mu           sync.RWMutex
	avgTimeMs    map[workloadKey]float64
	successRate  map[workloadKey]float64
	totalRecords uint64
}

func NewPerformanceHistory() *PerformanceHistory {
	return &PerformanceHistory{
		avgTimeMs:   make(map[workloadKey]float64),
		successRate: make(map[workloadKey]float64),
	}
}

// Averages returns the dynamic-language and portable-bytecode moving
// averages for a workload type, falling back to the fixed defaults when no
// observation has been recorded yet.
func (h *PerformanceHistory) Averages(workload dynamic.WorkloadType) (dynAvgMs, byteAvgMs float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dynAvgMs = defaultDynamicAvgMs
	if v, ok := h.avgTimeMs[workloadKey{shared.RuntimeTypeDynamicLanguage, workload}]; ok {
		dynAvgMs = v
	}
	byteAvgMs = defaultBytecodeAvgMs
	if v, ok := h.avgTimeMs[workloadKey{shared.RuntimeTypePortableBytecode, workload}]; ok {
		byteAvgMs = v
	}
	return dynAvgMs, byteAvgMs
}

// Record folds one execution's time and outcome into the moving average
// for its (runtime, workload) pair: new_avg = (current_avg + sample) / 2,
// matching record_execution_result exactly.
func (h *PerformanceHistory) Record(runtime shared.RuntimeType, workload dynamic.WorkloadType, executionTimeMs float64, success bool) {
	if runtime != shared.RuntimeTypeDynamicLanguage && runtime != shared.RuntimeTypePortableBytecode {
		return
	}

	key := workloadKey{runtime, workload}

	h.mu.Lock()
	defer h.mu.Unlock()

	currentAvg := h.avgTimeMs[key] // zero value if absent, matching unwrap_or(&0.0)
	h.avgTimeMs[key] = (currentAvg + executionTimeMs) / 2.0

	currentRate, ok := h.successRate[key]
	if !ok {
		currentRate = defaultSuccessRate
	}
	var outcome float64
	if success {
		outcome = 1.0
	}
	h.successRate[key] = (currentRate + outcome) / 2.0

	h.totalRecords++
}

// TotalRecords reports how many executions have updated the history.
func (h *PerformanceHistory) TotalRecords() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.totalRecords
}
