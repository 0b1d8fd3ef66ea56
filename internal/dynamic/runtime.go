package dynamic

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oriys/nova/internal/shared"
	"github.com/oriys/nova/internal/xerr"
)

type moduleEntry struct {
	code []byte
	lang shared.Language
}

type instanceEntry struct {
	moduleID shared.ModuleId
}

// Config bundles the two sub-runtimes' settings and the security table they
// share.
type Config struct {
	Native    NativeEmbedConfig
	Sandboxed SandboxedBytecodeConfig
}

func DefaultConfig() Config {
	return Config{Native: DefaultNativeEmbedConfig(), Sandboxed: DefaultSandboxedBytecodeConfig()}
}

// Runtime implements shared.Backend for the dynamic-language backend,
// routing each execution to one of its two sub-runtimes. Compile and
// Instantiate are source-agnostic (the "module" is just validated,
// retained source text); the native-vs-sandboxed choice is made at
// Execute time because it depends on the caller's trust level, which only
// arrives with shared.ExecutionConfig.
//
// Selection mirrors next-rc's scheduler.rs rule that Medium trust forces
// the safer sub-runtime for Simple/IoIntensive workloads, generalized to
// this backend's two flavors: High trust always gets native-embed speed,
// Low trust always gets the sandboxed-bytecode path, and Medium trust
// takes native-embed except for workloads the profiler calls Simple or
// IoIntensive.
type Runtime struct {
	security  *SecurityManager
	profiler  *WorkloadProfiler
	native    *NativeEmbed
	sandboxed *SandboxedBytecode

	mu        sync.RWMutex
	modules   map[shared.ModuleId]moduleEntry
	instances map[shared.InstanceId]instanceEntry

	compileCount   atomic.Int64
	executionCount atomic.Int64
	errorCount     atomic.Int64
	totalExecNanos atomic.Int64
}

func New(ctx context.Context, cfg Config) (*Runtime, error) {
	security := NewSecurityManager()

	sandboxed, err := NewSandboxedBytecode(ctx, cfg.Sandboxed)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		security:  security,
		profiler:  NewWorkloadProfiler(),
		native:    NewNativeEmbed(cfg.Native, security),
		sandboxed: sandboxed,
		modules:   make(map[shared.ModuleId]moduleEntry),
		instances: make(map[shared.InstanceId]instanceEntry),
	}, nil
}

func (r *Runtime) Type() shared.RuntimeType { return shared.RuntimeTypeDynamicLanguage }

// Compile checks only that the language is Python, JavaScript or
// TypeScript and stores the source unmodified; it runs no policy check.
// The trust-scoped ValidateCode runs at Execute time, once the actual
// caller's trust level is known.
func (r *Runtime) Compile(ctx context.Context, code []byte, lang shared.Language) (shared.ModuleId, error) {
	switch lang {
	case shared.LanguagePython, shared.LanguageJavaScript, shared.LanguageTypeScript:
	default:
		return shared.ModuleId{}, fmt.Errorf("%w: dynamic backend does not support %s", xerr.ErrInvalidLanguage, lang)
	}

	id := shared.NewModuleId()

	r.mu.Lock()
	r.modules[id] = moduleEntry{code: code, lang: lang}
	r.mu.Unlock()

	r.compileCount.Add(1)
	return id, nil
}

func (r *Runtime) Instantiate(ctx context.Context, module shared.ModuleId) (shared.InstanceId, error) {
	r.mu.RLock()
	_, ok := r.modules[module]
	r.mu.RUnlock()
	if !ok {
		return shared.InstanceId{}, xerr.ErrModuleNotFound
	}

	id := shared.NewInstanceId()

	r.mu.Lock()
	r.instances[id] = instanceEntry{moduleID: module}
	r.mu.Unlock()

	return id, nil
}

func (r *Runtime) Execute(ctx context.Context, instance shared.InstanceId, cfg shared.ExecutionConfig) (shared.ExecutionResult, error) {
	r.mu.RLock()
	inst, ok := r.instances[instance]
	r.mu.RUnlock()
	if !ok {
		return shared.ExecutionResult{}, xerr.ErrInstanceNotFound
	}

	r.mu.RLock()
	mod, ok := r.modules[inst.moduleID]
	r.mu.RUnlock()
	if !ok {
		return shared.ExecutionResult{}, xerr.ErrModuleNotFound
	}

	code := string(mod.code)

	if err := r.security.ValidateCode(code, cfg.Permissions.TrustLevel); err != nil {
		r.errorCount.Add(1)
		return shared.ExecutionResult{}, err
	}

	start := time.Now()
	var result shared.ExecutionResult
	var err error

	if r.useSandboxed(cfg.Permissions.TrustLevel, code) {
		result, err = r.sandboxed.Execute(ctx, code, cfg)
	} else {
		result, err = r.native.Execute(ctx, code, cfg)
	}

	r.executionCount.Add(1)
	r.totalExecNanos.Add(time.Since(start).Nanoseconds())
	if err != nil || !result.Success {
		r.errorCount.Add(1)
	}
	return result, err
}

func (r *Runtime) useSandboxed(level shared.TrustLevel, code string) bool {
	switch level {
	case shared.TrustLow:
		return true
	case shared.TrustHigh:
		return false
	default:
		switch r.profiler.AnalyzeWorkload(code) {
		case WorkloadSimple, WorkloadIOIntensive:
			return true
		default:
			return false
		}
	}
}

func (r *Runtime) Destroy(ctx context.Context, instance shared.InstanceId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[instance]; !ok {
		return xerr.ErrInstanceNotFound
	}
	delete(r.instances, instance)
	return nil
}

func (r *Runtime) Metrics() shared.RuntimeMetrics {
	r.mu.RLock()
	cached := len(r.modules)
	r.mu.RUnlock()

	execs := r.executionCount.Load()
	var avgNanos int64
	if execs > 0 {
		avgNanos = r.totalExecNanos.Load() / execs
	}

	var overheadPct float32
	if execs > 0 {
		overheadPct = float32(r.errorCount.Load()) / float32(execs) * 100
	}

	return shared.RuntimeMetrics{
		ColdStartLatencyNs:   avgNanos,
		ExecutionOverheadPct: overheadPct,
		CachedModules:        cached,
	}
}

func (r *Runtime) Close(ctx context.Context) error {
	return r.sandboxed.Close(ctx)
}
