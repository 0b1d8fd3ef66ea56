// Package bridge implements the controller's host-facing surface: the
// narrow, in-process Go API a foreign-language embedder would call through
// an FFI/cgo/N-API boundary. That boundary itself is out of scope; this
// package is the interface such a boundary would wrap.
//
// Grounded on internal/backend's original single-entry-point dispatch
// across VM backend implementations (superseded by this package) and
// internal/metrics's counters behind status/metrics reporting.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oriys/nova/internal/bytecode"
	"github.com/oriys/nova/internal/dispatcher"
	"github.com/oriys/nova/internal/dynamic"
	"github.com/oriys/nova/internal/filter"
	"github.com/oriys/nova/internal/logging"
	"github.com/oriys/nova/internal/metrics"
	"github.com/oriys/nova/internal/shared"
	"github.com/oriys/nova/internal/xerr"
)

// Config bundles per-backend configuration for Initialize.
type Config struct {
	Filter   filter.Config
	Bytecode bytecode.Config
	Dynamic  dynamic.Config
}

func DefaultConfig() Config {
	return Config{
		Filter:   filter.DefaultConfig(),
		Bytecode: bytecode.DefaultConfig(),
		Dynamic:  dynamic.DefaultConfig(),
	}
}

// Status is the response shape for get_status.
type Status struct {
	Initialized       bool
	AvailableRuntimes []string
	ActiveInstances   int
}

// Controller is the single object a host embeds: it owns one instance of
// each backend and the dispatcher that picks among them. Its exported
// methods are exactly the controller's host-facing bridge surface.
type Controller struct {
	mu          sync.RWMutex
	initialized bool

	filterRT filterBackend
	byteRT   bytecodeBackend
	dynRT    dynamicBackend

	dispatcher *dispatcher.Dispatcher

	instanceOwner map[shared.InstanceId]shared.RuntimeType
}

// The three narrow interfaces below let tests substitute fakes for each
// backend without depending on wazero/unix internals; in production they
// are satisfied by *filter.Runtime, *bytecode.Runtime, *dynamic.Runtime.
type filterBackend interface {
	shared.Backend
}
type bytecodeBackend interface {
	shared.Backend
	Close(ctx context.Context) error
}
type dynamicBackend interface {
	shared.Backend
	Close(ctx context.Context) error
}

func New() *Controller {
	return &Controller{
		dispatcher:    dispatcher.New(),
		instanceOwner: make(map[shared.InstanceId]shared.RuntimeType),
	}
}

// Initialize constructs the three backends. It must be called once before
// any other method; calling it twice is a no-op on the second call.
func (c *Controller) Initialize(ctx context.Context, cfg Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	c.filterRT = filter.New(cfg.Filter)
	c.byteRT = bytecode.New(ctx, cfg.Bytecode)

	dynRT, err := dynamic.New(ctx, cfg.Dynamic)
	if err != nil {
		return fmt.Errorf("initialize dynamic-language backend: %w", err)
	}
	c.dynRT = dynRT

	c.initialized = true
	logging.Op().Info("sandbox controller initialized")
	return nil
}

// GetAvailableRuntimes reports the backends currently constructed.
func (c *Controller) GetAvailableRuntimes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.initialized {
		return nil
	}
	return []string{
		c.filterRT.Type().String(),
		c.byteRT.Type().String(),
		c.dynRT.Type().String(),
	}
}

// GetStatus reports whether the controller is initialized, which runtimes
// are up, and how many instances are currently live across all backends.
func (c *Controller) GetStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Status{
		Initialized:       c.initialized,
		AvailableRuntimes: c.availableRuntimesLocked(),
		ActiveInstances:   len(c.instanceOwner),
	}
}

func (c *Controller) availableRuntimesLocked() []string {
	if !c.initialized {
		return nil
	}
	return []string{
		c.filterRT.Type().String(),
		c.byteRT.Type().String(),
		c.dynRT.Type().String(),
	}
}

// GetPerformanceMetrics returns the RuntimeMetrics snapshot for every
// backend, keyed by its RuntimeType string.
func (c *Controller) GetPerformanceMetrics() map[string]shared.RuntimeMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.initialized {
		return nil
	}
	return map[string]shared.RuntimeMetrics{
		c.filterRT.Type().String(): c.filterRT.Metrics(),
		c.byteRT.Type().String():   c.byteRT.Metrics(),
		c.dynRT.Type().String():    c.dynRT.Metrics(),
	}
}

// Submit is the end-to-end convenience path: dispatch picks a backend,
// compile the source, instantiate it, execute it, destroy it, and record
// the outcome into the dispatcher's performance history.
func (c *Controller) Submit(ctx context.Context, lang shared.Language, code []byte, hint dispatcher.Hint, execCfg shared.ExecutionConfig) (shared.ExecutionResult, error) {
	c.mu.RLock()
	if !c.initialized {
		c.mu.RUnlock()
		return shared.ExecutionResult{}, fmt.Errorf("%w: controller not initialized", xerr.ErrInternal)
	}
	c.mu.RUnlock()

	runtimeType := c.dispatcher.Select(dispatcher.Request{
		Language:    lang,
		Permissions: execCfg.Permissions,
		Code:        string(code),
		Hint:        hint,
	})

	backend := c.backendFor(runtimeType)

	modID, err := backend.Compile(ctx, code, lang)
	if err != nil {
		return shared.ExecutionResult{}, err
	}
	metrics.Global().RecordCompile(runtimeType.String())

	instID, err := backend.Instantiate(ctx, modID)
	if err != nil {
		return shared.ExecutionResult{}, err
	}

	c.mu.Lock()
	c.instanceOwner[instID] = runtimeType
	c.mu.Unlock()

	defer func() {
		_ = backend.Destroy(ctx, instID)
		c.mu.Lock()
		delete(c.instanceOwner, instID)
		c.mu.Unlock()
	}()

	start := time.Now()
	result, err := backend.Execute(ctx, instID, execCfg)
	elapsed := time.Since(start)
	metrics.Global().RecordExecution(runtimeType.String(), elapsed, err == nil && result.Success)

	workload := dynamic.NewWorkloadProfiler().AnalyzeWorkload(string(code))
	c.dispatcher.RecordResult(runtimeType, workload, float64(elapsed.Milliseconds()), err == nil && result.Success)

	return result, err
}

func (c *Controller) backendFor(t shared.RuntimeType) shared.Backend {
	c.mu.RLock()
	defer c.mu.RUnlock()

	switch t {
	case shared.RuntimeTypePacketFilter:
		return c.filterRT
	case shared.RuntimeTypePortableBytecode:
		return c.byteRT
	default:
		return c.dynRT
	}
}

// Shutdown releases resources held by backends that need explicit cleanup
// (the wazero engines behind portable-bytecode and dynamic-language).
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return nil
	}

	var errs []error
	if err := c.byteRT.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.dynRT.Close(ctx); err != nil {
		errs = append(errs, err)
	}

	c.initialized = false
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
