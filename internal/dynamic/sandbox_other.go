//go:build !linux

package dynamic

import (
	"github.com/oriys/nova/internal/shared"
)

// SandboxContext is the non-Linux stand-in: namespace unsharing and
// seccomp-bpf are Linux-only primitives, so on other platforms the
// sandbox degrades to "no additional OS-level isolation", relying on the
// security manager's textual validation and the per-process memory/time
// limits alone.
type SandboxContext struct {
	Restrictions Restrictions
}

func (s *SecurityManager) CreateSandbox(level shared.TrustLevel) (*SandboxContext, error) {
	return &SandboxContext{Restrictions: s.GetRestrictions(level)}, nil
}

func (c *SandboxContext) Activate() error {
	return nil
}

// CloneFlags is always 0 off Linux: namespace isolation has no portable
// equivalent, so the sandbox relies on textual validation alone.
func (c *SandboxContext) CloneFlags() int {
	return 0
}
