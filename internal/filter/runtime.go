package filter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oriys/nova/internal/logging"
	"github.com/oriys/nova/internal/shared"
	"github.com/oriys/nova/internal/xerr"
)

// Config tunes the verifier's limits and the backend's memory pool size.
// Defaults match next-rc's runtimes/ebpf defaults (4096 instructions,
// 1000 slots of 64KiB).
type Config struct {
	MaxInstructions int
	AllowUnsafe     bool
	PoolSlots       int
	PoolSlotBytes   int
}

func DefaultConfig() Config {
	return Config{
		MaxInstructions: 4096,
		AllowUnsafe:     false,
		PoolSlots:       1000,
		PoolSlotBytes:   64 * 1024,
	}
}

type instance struct {
	id        shared.InstanceId
	moduleID  shared.ModuleId
	program   *Program
	compiled  *CompiledProgram
	slot      *shared.MemorySlot
}

// Runtime implements shared.Backend for packet-filter programs. It is
// intentionally small: verification is pure and JIT compilation is
// cached, so the hot path (Execute on an already-instantiated instance) is
// just a cache lookup plus an interpreter loop.
//
// Ported from next-rc's runtimes/ebpf/src/runtime.rs::EbpfRuntime.
type Runtime struct {
	verifier *Verifier
	jit      *JIT
	programs *ProgramCache
	pool     *shared.Pool

	mu        sync.RWMutex
	instances map[shared.InstanceId]*instance
}

func New(cfg Config) *Runtime {
	logging.Op().Info("initializing packet-filter backend",
		"max_instructions", cfg.MaxInstructions, "allow_unsafe", cfg.AllowUnsafe)
	return &Runtime{
		verifier:  NewVerifierWithConfig(cfg.MaxInstructions, cfg.AllowUnsafe),
		jit:       NewJIT(),
		programs:  NewProgramCache(),
		pool:      shared.NewPool(cfg.PoolSlots, cfg.PoolSlotBytes),
		instances: make(map[shared.InstanceId]*instance),
	}
}

func (r *Runtime) Type() shared.RuntimeType { return shared.RuntimeTypePacketFilter }

// Compile treats code as raw eBPF-shaped bytecode unless lang is C, in
// which case it stands in for a clang-to-BPF toolchain invocation that
// this backend does not carry, returning a small fixed accept-all program,
// exactly as next-rc's compile_to_ebpf stub does.
func (r *Runtime) Compile(ctx context.Context, code []byte, lang shared.Language) (shared.ModuleId, error) {
	start := time.Now()

	bytecode := code
	if lang == shared.LanguageC {
		bytecode = []byte{
			0xb7, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
			0x95, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
		}
	}

	program := FromBytecode(bytecode, ProgramTypeFilter)

	if err := r.verifier.Verify(program.Bytecode); err != nil {
		return shared.ModuleId{}, fmt.Errorf("%w: %v", xerr.ErrCompilation, err)
	}

	id := r.programs.Insert(program)
	logging.Op().Info("compiled packet-filter module", "module_id", id.String(), "elapsed", time.Since(start))
	return id, nil
}

func (r *Runtime) Instantiate(ctx context.Context, moduleID shared.ModuleId) (shared.InstanceId, error) {
	program, ok := r.programs.Get(moduleID)
	if !ok {
		return shared.InstanceId{}, fmt.Errorf("%w: %s", xerr.ErrModuleNotFound, moduleID)
	}

	compiled, err := r.jit.Compile(program.Bytecode)
	if err != nil {
		return shared.InstanceId{}, fmt.Errorf("%w: %v", xerr.ErrInstantiation, err)
	}

	slot, ok := r.pool.Allocate()
	if !ok {
		return shared.InstanceId{}, fmt.Errorf("%w: packet-filter pool exhausted", xerr.ErrMemory)
	}

	id := shared.NewInstanceId()
	r.mu.Lock()
	r.instances[id] = &instance{id: id, moduleID: moduleID, program: program, compiled: compiled, slot: slot}
	r.mu.Unlock()

	logging.Op().Info("instantiated packet-filter instance", "instance_id", id.String())
	return id, nil
}

// Execute runs the cached compiled program against cfg.Input, falling back
// to a fixed probe payload when no input is supplied, matching next-rc's
// runtime.rs which hardcodes a test payload here. This backend has no
// other source of "the packet," since packet delivery is an external
// collaborator it does not own.
func (r *Runtime) Execute(ctx context.Context, instanceID shared.InstanceId, cfg shared.ExecutionConfig) (shared.ExecutionResult, error) {
	start := time.Now()

	r.mu.RLock()
	inst, ok := r.instances[instanceID]
	r.mu.RUnlock()
	if !ok {
		return shared.ExecutionResult{}, fmt.Errorf("%w: %s", xerr.ErrInstanceNotFound, instanceID)
	}

	data := cfg.Input
	if len(data) == 0 {
		data = []byte("test packet data")
	}

	result, err := r.jit.Execute(ctx, inst.compiled, data)
	elapsed := time.Since(start)
	if err != nil {
		return shared.ExecutionResult{
			Success:       false,
			Error:         err.Error(),
			ExecutionTime: elapsed,
		}, nil
	}

	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[i] = byte(result >> (8 * i))
	}

	return shared.ExecutionResult{
		Success:       true,
		Output:        out,
		ExecutionTime: elapsed,
		MemoryUsed:    0,
	}, nil
}

func (r *Runtime) Destroy(ctx context.Context, instanceID shared.InstanceId) error {
	r.mu.Lock()
	inst, ok := r.instances[instanceID]
	if ok {
		delete(r.instances, instanceID)
	}
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", xerr.ErrInstanceNotFound, instanceID)
	}
	r.pool.Release(inst.slot)
	logging.Op().Info("destroyed packet-filter instance", "instance_id", instanceID.String())
	return nil
}

func (r *Runtime) Metrics() shared.RuntimeMetrics {
	return shared.RuntimeMetrics{
		AvailableSlots: r.pool.AvailableSlots(),
		TotalSlots:     r.pool.TotalSlots(),
		CachedModules:  r.programs.Size(),
	}
}

// ExecuteFilter is the direct, non-Backend-interface entry point for the
// verify-then-JIT-then-execute path: verify (run on every call),
// JIT-compile (cached),
// execute, synchronous and allocation-light on a cache hit.
func (r *Runtime) ExecuteFilter(ctx context.Context, program *Program, data []byte) (FilterResult, error) {
	start := time.Now()

	if err := r.verifier.Verify(program.Bytecode); err != nil {
		return FilterResult{}, fmt.Errorf("%w: %v", xerr.ErrCompilation, err)
	}

	compiled, err := r.jit.Compile(program.Bytecode)
	if err != nil {
		return FilterResult{}, err
	}

	result, err := r.jit.Execute(ctx, compiled, data)
	if err != nil {
		return FilterResult{}, err
	}

	action := FilterActionDrop
	if result > 0 {
		action = FilterActionAccept
	}
	return FilterResult{Action: action, ExecutionTime: time.Since(start)}, nil
}

// FilterAction is the verdict a filter program renders on one packet.
type FilterAction int

const (
	FilterActionAccept FilterAction = iota
	FilterActionDrop
)

func (a FilterAction) String() string {
	if a == FilterActionAccept {
		return "accept"
	}
	return "drop"
}

// FilterResult is ExecuteFilter's return value.
type FilterResult struct {
	Action        FilterAction
	ExecutionTime time.Duration
}
