package dynamic

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/oriys/nova/internal/shared"
	"github.com/oriys/nova/internal/xerr"
)

// SandboxedBytecodeConfig controls the pre-compiled interpreter module this
// sub-runtime hosts. A real deployment points ModuleBytes at a Python
// interpreter built for WASI (py2wasm / CPython-wasi); this package ships
// its own minimal placeholder module (minimalInterpreterWasm) so the wiring
// is exercised without bundling a multi-megabyte binary asset. FuelLimit is
// carried in the config but not enforced by Execute.
type SandboxedBytecodeConfig struct {
	ModuleBytes []byte
	FuelLimit   uint64
}

func DefaultSandboxedBytecodeConfig() SandboxedBytecodeConfig {
	return SandboxedBytecodeConfig{ModuleBytes: minimalInterpreterWasm, FuelLimit: 1_000_000}
}

// minimalInterpreterWasm stands in for a pre-built WASI interpreter image:
// a module exporting a single "_start" that returns immediately. Real
// interpreter builds are orders of magnitude larger; the sandboxed-bytecode
// sub-runtime's contract (compile once, instantiate many, WASI-hosted,
// time-bounded) does not depend on which module fills that role.
var minimalInterpreterWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x04, 0x01, 0x60, 0x00, 0x00,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x0a, 0x01, 0x06, '_', 's', 't', 'a', 'r', 't', 0x00, 0x00,
	0x0a, 0x04, 0x01, 0x02, 0x00, 0x0b,
}

// SandboxedBytecode is the heavily isolated sub-runtime: a single
// pre-compiled WASI interpreter module, instantiated fresh per execution
// inside wazero. wazero has no fuel counter and none is emulated: the only
// ceiling is a context deadline of the execution timeout, after which
// Execute stops waiting and returns ErrTimeout. The engine uses wazero's
// default runtime configuration, with no memory limit of its own.
//
// Ported from next-rc's runtimes/python/src/wasm_runtime.rs::WasmPythonRuntime.
type SandboxedBytecode struct {
	cfg    SandboxedBytecodeConfig
	engine wazero.Runtime
	module wazero.CompiledModule

	mu        sync.Mutex
	active    int
	compileOn sync.Once
	compErr   error
}

func NewSandboxedBytecode(ctx context.Context, cfg SandboxedBytecodeConfig) (*SandboxedBytecode, error) {
	engine := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, engine); err != nil {
		return nil, fmt.Errorf("%w: instantiate wasi: %v", xerr.ErrInstantiation, err)
	}

	module, err := engine.CompileModule(ctx, cfg.ModuleBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: compile interpreter module: %v", xerr.ErrCompilation, err)
	}

	return &SandboxedBytecode{cfg: cfg, engine: engine, module: module}, nil
}

// Execute instantiates a fresh copy of the interpreter module per request,
// with the source passed in as stdin, and races it against the
// configuration's timeout.
func (s *SandboxedBytecode) Execute(ctx context.Context, code string, execCfg shared.ExecutionConfig) (shared.ExecutionResult, error) {
	start := time.Now()

	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()

	var stdout, stderr bytes.Buffer
	modCfg := wazero.NewModuleConfig().
		WithStdin(bytes.NewBufferString(code)).
		WithStdout(&stdout).
		WithStderr(&stderr).
		WithArgs("interpreter")

	runCtx, cancel := context.WithTimeout(ctx, execCfg.Timeout)
	defer cancel()

	type outcome struct {
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		_, err := s.engine.InstantiateModule(runCtx, s.module, modCfg)
		done <- outcome{err: err}
	}()

	select {
	case res := <-done:
		elapsed := time.Since(start)
		if res.err != nil {
			return shared.ExecutionResult{
				Success:       false,
				Error:         fmt.Sprintf("%v: %s", res.err, stderr.String()),
				ExecutionTime: elapsed,
			}, nil
		}
		return shared.ExecutionResult{
			Success:       true,
			Output:        stdout.Bytes(),
			ExecutionTime: elapsed,
		}, nil
	case <-runCtx.Done():
		return shared.ExecutionResult{}, fmt.Errorf("%w: sandboxed execution exceeded %s", xerr.ErrTimeout, execCfg.Timeout)
	}
}

func (s *SandboxedBytecode) Close(ctx context.Context) error {
	return s.engine.Close(ctx)
}
