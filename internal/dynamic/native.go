package dynamic

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/oriys/nova/internal/logging"
	"github.com/oriys/nova/internal/shared"
	"github.com/oriys/nova/internal/xerr"
)

// NativeEmbedConfig points at the external interpreter binary used for
// fast, less-isolated execution. Per-request isolation comes from spawning
// a fresh process with a minimal environment and the sandbox's namespace
// clone flags, not from embedding an interpreter in-process. Go has no
// analogue to PyO3's in-process CPython embedding, so a process-per-request
// model is the closest honest equivalent.
type NativeEmbedConfig struct {
	InterpreterPath string
	WorkDir         string
}

func DefaultNativeEmbedConfig() NativeEmbedConfig {
	return NativeEmbedConfig{InterpreterPath: "python3", WorkDir: os.TempDir()}
}

// NativeEmbed is the fast sub-runtime: one process per request, captured
// stdout, a memory rlimit, and (when the trust level's restrictions call
// for it) namespace isolation applied at fork time through clone flags.
// The seccomp program CreateSandbox builds is not installed in the child:
// nothing on this path calls SandboxContext.Activate.
//
// Ported from next-rc's runtimes/python/src/pyo3_runtime.rs::PyO3Runtime,
// whose "fresh interpreter per request" isolation model maps directly onto
// "fresh process per request" here.
type NativeEmbed struct {
	cfg      NativeEmbedConfig
	security *SecurityManager

	mu      sync.Mutex
	active  int
}

func NewNativeEmbed(cfg NativeEmbedConfig, security *SecurityManager) *NativeEmbed {
	return &NativeEmbed{cfg: cfg, security: security}
}

// Execute validates code against the trust level's textual policy, builds
// a sandbox, and runs the interpreter as a child process with the code on
// stdin, capturing stdout as the execution output.
func (n *NativeEmbed) Execute(ctx context.Context, code string, cfg shared.ExecutionConfig) (shared.ExecutionResult, error) {
	start := time.Now()

	if err := n.security.ValidateCode(code, cfg.Permissions.TrustLevel); err != nil {
		return shared.ExecutionResult{}, err
	}

	sandbox, err := n.security.CreateSandbox(cfg.Permissions.TrustLevel)
	if err != nil {
		return shared.ExecutionResult{}, fmt.Errorf("%w: %v", xerr.ErrSecurity, err)
	}

	n.mu.Lock()
	n.active++
	n.mu.Unlock()
	defer func() {
		n.mu.Lock()
		n.active--
		n.mu.Unlock()
	}()

	execCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, n.cfg.InterpreterPath, "-")
	cmd.Dir = n.cfg.WorkDir
	cmd.Stdin = bytes.NewBufferString(code)
	cmd.Env = isolatedEnv(cfg.Permissions)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Cloneflags: uintptr(sandbox.CloneFlags()),
	}

	n.mu.Lock()
	setMemoryRlimit(sandbox.Restrictions.MaxMemoryMB * 1024 * 1024)
	runErr := cmd.Start()
	n.mu.Unlock()
	if runErr == nil {
		runErr = cmd.Wait()
	}
	elapsed := time.Since(start)

	if runErr != nil {
		logging.Op().Warn("native-embed execution failed", "error", runErr, "stderr", stderr.String())
		return shared.ExecutionResult{
			Success:       false,
			Error:         fmt.Sprintf("%v: %s", runErr, stderr.String()),
			ExecutionTime: elapsed,
		}, nil
	}

	return shared.ExecutionResult{
		Success:       true,
		Output:        stdout.Bytes(),
		ExecutionTime: elapsed,
	}, nil
}

func isolatedEnv(perm shared.Permissions) []string {
	env := []string{"PATH=/usr/bin:/bin"}
	if perm.Has(shared.CapEnvironmentVariables) {
		env = append(env, os.Environ()...)
	}
	return env
}
