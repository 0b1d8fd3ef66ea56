package bytecode

import (
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"

	"github.com/oriys/nova/internal/logging"
	"github.com/oriys/nova/internal/shared"
	"github.com/oriys/nova/internal/xerr"
)

// Runtime implements shared.Backend for WASM-style portable bytecode:
// compile -> module cache -> instantiate against a pooled memory slot ->
// watchdog-guarded execute -> destroy releases the slot.
//
// Ported from next-rc's runtimes/wasm/src/runtime.rs::WasmRuntime.
type Runtime struct {
	cfg      Config
	engine   wazero.Runtime
	compiler *Compiler
	cache    *ModuleCache
	pool     *shared.Pool
	manager  *InstanceManager
}

func New(ctx context.Context, cfg Config) *Runtime {
	logging.Op().Info("initializing portable-bytecode backend",
		"total_slots", cfg.TotalSlots, "slot_bytes", cfg.SlotSizeBytes)

	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(uint32(cfg.MaxInstanceMemory / wasmPageSize))
	engine := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	return &Runtime{
		cfg:      cfg,
		engine:   engine,
		compiler: NewCompiler(engine),
		cache:    NewModuleCache(engine),
		pool:     shared.NewPool(cfg.TotalSlots, cfg.SlotSizeBytes),
		manager:  NewInstanceManager(engine),
	}
}

func (r *Runtime) Type() shared.RuntimeType { return shared.RuntimeTypePortableBytecode }

func (r *Runtime) Compile(ctx context.Context, code []byte, lang shared.Language) (shared.ModuleId, error) {
	start := time.Now()

	wasmBytes, err := r.compiler.Compile(ctx, code, lang)
	if err != nil {
		return shared.ModuleId{}, err
	}

	id := shared.NewModuleId()
	if _, err := r.cache.CompileAndCache(ctx, id, wasmBytes); err != nil {
		return shared.ModuleId{}, fmt.Errorf("%w: %v", xerr.ErrCompilation, err)
	}

	logging.Op().Info("compiled portable-bytecode module", "module_id", id.String(), "elapsed", time.Since(start))
	return id, nil
}

func (r *Runtime) Instantiate(ctx context.Context, moduleID shared.ModuleId) (shared.InstanceId, error) {
	compiled, ok := r.cache.Get(moduleID)
	if !ok {
		return shared.InstanceId{}, fmt.Errorf("%w: %s", xerr.ErrModuleNotFound, moduleID)
	}

	slot, ok := r.pool.Allocate()
	if !ok {
		return shared.InstanceId{}, fmt.Errorf("%w: portable-bytecode pool exhausted", xerr.ErrMemory)
	}

	id := shared.NewInstanceId()
	if _, err := r.manager.CreateInstance(ctx, id, moduleID, compiled, slot); err != nil {
		r.pool.Release(slot)
		return shared.InstanceId{}, err
	}

	return id, nil
}

func (r *Runtime) Execute(ctx context.Context, instanceID shared.InstanceId, cfg shared.ExecutionConfig) (shared.ExecutionResult, error) {
	inst, ok := r.manager.GetInstance(instanceID)
	if !ok {
		return shared.ExecutionResult{}, fmt.Errorf("%w: %s", xerr.ErrInstanceNotFound, instanceID)
	}

	result, err := r.manager.ExecuteInstance(ctx, inst, cfg, r.cfg.WatchdogGrace)
	if err != nil {
		return shared.ExecutionResult{}, err
	}

	if result.Success {
		logging.Op().Info("portable-bytecode execution succeeded", "instance_id", instanceID.String(), "elapsed", result.ExecutionTime)
	} else {
		logging.Op().Warn("portable-bytecode execution failed", "instance_id", instanceID.String(), "error", result.Error)
	}

	return result, nil
}

func (r *Runtime) Destroy(ctx context.Context, instanceID shared.InstanceId) error {
	inst, ok := r.manager.RemoveInstance(instanceID)
	if !ok {
		return fmt.Errorf("%w: %s", xerr.ErrInstanceNotFound, instanceID)
	}
	r.pool.Release(inst.MemorySlot)
	logging.Op().Info("destroyed portable-bytecode instance", "instance_id", instanceID.String())
	return nil
}

func (r *Runtime) Metrics() shared.RuntimeMetrics {
	return shared.RuntimeMetrics{
		AvailableSlots: r.pool.AvailableSlots(),
		TotalSlots:     r.pool.TotalSlots(),
		CachedModules:  r.cache.Size(),
	}
}

// Close releases the underlying wazero engine. Callers should call this on
// controller shutdown.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}
