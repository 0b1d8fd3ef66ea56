// Package dynamic implements the dynamic-language backend: a fixed
// per-trust-level security policy table, a textual code validator, Linux
// sandbox construction (namespaces + seccomp), a regex-based workload
// profiler, and two sub-runtimes: native-embed (fast, less isolated, a
// fresh process per request) and sandboxed-bytecode (a WASI-hosted
// interpreter module run inside wazero under a context deadline; there is
// no fuel or instruction-count limiter).
//
// Grounded on next-rc's runtimes/python crate (security.rs, scheduler.rs,
// pyo3_runtime.rs, wasm_runtime.rs).
package dynamic

import (
	"fmt"
	"strings"

	"github.com/oriys/nova/internal/shared"
	"github.com/oriys/nova/internal/xerr"
)

// Restrictions is the fixed policy bound to one trust level. Values are
// ported verbatim from next-rc's SecurityManager::new table.
type Restrictions struct {
	MaxMemoryMB        uint64
	MaxExecutionTimeMs uint64
	AllowedImports     []string
	BlockedImports     []string
	AllowedFunctions   []string
	BlockedFunctions   []string
	NetworkAccess      bool
	FileSystemAccess   bool
	SubprocessAccess   bool
	UseSeccomp         bool
	UseNamespaces      bool
}

// SecurityManager holds the closed per-trust-level policy table. It is
// built once and never mutated.
type SecurityManager struct {
	restrictions map[shared.TrustLevel]Restrictions
}

func NewSecurityManager() *SecurityManager {
	return &SecurityManager{restrictions: map[shared.TrustLevel]Restrictions{
		shared.TrustLow: {
			MaxMemoryMB:        128,
			MaxExecutionTimeMs: 30000,
			AllowedImports:     []string{"json", "math", "random", "datetime", "re", "string", "collections", "itertools"},
			BlockedImports:     []string{"os", "sys", "subprocess", "socket", "urllib", "requests", "http", "__import__", "eval", "exec"},
			AllowedFunctions:   []string{"print", "len", "range", "enumerate", "zip", "map", "filter", "sorted", "sum", "min", "max"},
			BlockedFunctions:   []string{"open", "input", "eval", "exec", "compile", "__import__", "getattr", "setattr", "delattr", "globals", "locals", "vars", "dir"},
			NetworkAccess:      false,
			FileSystemAccess:   false,
			SubprocessAccess:   false,
			UseSeccomp:         true,
			UseNamespaces:      true,
		},
		shared.TrustMedium: {
			MaxMemoryMB:        512,
			MaxExecutionTimeMs: 120000,
			AllowedImports:     []string{"json", "math", "random", "datetime", "re", "string", "collections", "itertools", "numpy", "pandas", "requests", "urllib", "transformers", "huggingface_hub", "smolagents"},
			BlockedImports:     []string{"os", "sys", "subprocess", "socket", "__import__"},
			AllowedFunctions:   []string{"print", "len", "range", "enumerate", "zip", "map", "filter", "sorted", "sum", "min", "max", "open"},
			BlockedFunctions:   []string{"eval", "exec", "compile", "__import__", "globals", "locals", "vars"},
			NetworkAccess:      true,
			FileSystemAccess:   true,
			SubprocessAccess:   false,
			UseSeccomp:         true,
			UseNamespaces:      false,
		},
		shared.TrustHigh: {
			MaxMemoryMB:        2048,
			MaxExecutionTimeMs: 300000,
			NetworkAccess:      true,
			FileSystemAccess:   true,
			SubprocessAccess:   true,
			UseSeccomp:         false,
			UseNamespaces:      false,
		},
	}}
}

// GetRestrictions returns the fixed policy for a trust level. Every
// shared.TrustLevel value has an entry; callers never need a default case.
func (s *SecurityManager) GetRestrictions(level shared.TrustLevel) Restrictions {
	return s.restrictions[level]
}

var dangerousPatterns = []string{
	"__import__", "eval(", "exec(", "compile(", "globals(", "locals(",
	"getattr(", "setattr(", "delattr(",
}

// ValidateCode runs textual, best-effort checks that stand in for an
// AST-level validator: blocked import detection, blocked function-call
// detection, and a fixed list of dangerous patterns. Ported verbatim from
// next-rc's security.rs::validate_code.
func (s *SecurityManager) ValidateCode(code string, level shared.TrustLevel) error {
	restrictions := s.GetRestrictions(level)

	for _, blocked := range restrictions.BlockedImports {
		if strings.Contains(code, "import "+blocked) || strings.Contains(code, "from "+blocked) {
			return fmt.Errorf("%w: blocked import detected: %s", xerr.ErrSecurity, blocked)
		}
	}

	for _, blocked := range restrictions.BlockedFunctions {
		if strings.Contains(code, blocked+"(") {
			return fmt.Errorf("%w: blocked function detected: %s", xerr.ErrSecurity, blocked)
		}
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(code, pattern) {
			return fmt.Errorf("%w: dangerous pattern detected: %s", xerr.ErrSecurity, pattern)
		}
	}

	return nil
}
