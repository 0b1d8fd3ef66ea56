package bytecode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/oriys/nova/internal/shared"
	"github.com/oriys/nova/internal/xerr"
)

// Instance is one live module instantiation: the wazero module, the
// memory slot it was allocated against, and its peak-usage tracker.
type Instance struct {
	ID         shared.InstanceId
	ModuleID   shared.ModuleId
	MemorySlot *shared.MemorySlot
	Entry      string

	mu         sync.Mutex
	mod        api.Module
	peakMemory int
}

// InstanceManager owns the live-instance registry and the execute-under-
// watchdog logic. Ported from next-rc's runtimes/wasm/src/instance.rs.
type InstanceManager struct {
	runtime wazero.Runtime

	mu        sync.RWMutex
	instances map[shared.InstanceId]*Instance
}

func NewInstanceManager(runtime wazero.Runtime) *InstanceManager {
	return &InstanceManager{runtime: runtime, instances: make(map[shared.InstanceId]*Instance)}
}

func (m *InstanceManager) CreateInstance(ctx context.Context, id shared.InstanceId, moduleID shared.ModuleId, compiled *CompiledModule, slot *shared.MemorySlot) (*Instance, error) {
	modConfig := wazero.NewModuleConfig().WithName(id.String())

	mod, err := m.runtime.InstantiateModule(ctx, compiled.Module, modConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerr.ErrInstantiation, err)
	}

	inst := &Instance{
		ID:         id,
		ModuleID:   moduleID,
		MemorySlot: slot,
		Entry:      compiled.Metadata.EntryPoint,
		mod:        mod,
	}

	m.mu.Lock()
	m.instances[id] = inst
	m.mu.Unlock()

	return inst, nil
}

func (m *InstanceManager) GetInstance(id shared.InstanceId) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	return inst, ok
}

func (m *InstanceManager) RemoveInstance(id shared.InstanceId) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[id]
	if ok {
		delete(m.instances, id)
	}
	return inst, ok
}

// ExecuteInstance races a worker goroutine calling the entry point against
// config.Timeout plus a small grace period, matching next-rc's
// `timeout(config.timeout + Duration::from_millis(100), rx)`.
func (m *InstanceManager) ExecuteInstance(ctx context.Context, inst *Instance, cfg shared.ExecutionConfig, grace time.Duration) (shared.ExecutionResult, error) {
	type outcome struct {
		result shared.ExecutionResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		done <- outcome{result: executeWithConfig(ctx, inst)}
	}()

	deadline := cfg.Timeout + grace
	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.result, o.err
	case <-timer.C:
		return shared.ExecutionResult{
			Success:       false,
			Error:         "Timeout",
			ExecutionTime: cfg.Timeout,
		}, nil
	case <-ctx.Done():
		return shared.ExecutionResult{}, ctx.Err()
	}
}

func executeWithConfig(ctx context.Context, inst *Instance) shared.ExecutionResult {
	start := time.Now()

	inst.mu.Lock()
	defer inst.mu.Unlock()

	if inst.Entry == "" {
		return shared.ExecutionResult{
			Success:       false,
			Error:         "no entry point found",
			ExecutionTime: time.Since(start),
		}
	}

	fn := inst.mod.ExportedFunction(inst.Entry)
	if fn == nil {
		return shared.ExecutionResult{
			Success:       false,
			Error:         "no entry point found",
			ExecutionTime: time.Since(start),
		}
	}

	results, err := fn.Call(ctx)
	memUsed := currentMemoryUsage(inst.mod)
	if memUsed > inst.peakMemory {
		inst.peakMemory = memUsed
	}

	if err != nil {
		return shared.ExecutionResult{
			Success:       false,
			Error:         fmt.Sprintf("execution error: %v", err),
			ExecutionTime: time.Since(start),
			MemoryUsed:    memUsed,
		}
	}

	var output []byte
	if len(results) > 0 {
		output = []byte(fmt.Sprintf("%d", int32(results[0])))
	}

	return shared.ExecutionResult{
		Success:       true,
		Output:        output,
		ExecutionTime: time.Since(start),
		MemoryUsed:    memUsed,
	}
}

func currentMemoryUsage(mod api.Module) int {
	mem := mod.Memory()
	if mem == nil {
		return 0
	}
	return int(mem.Size())
}
