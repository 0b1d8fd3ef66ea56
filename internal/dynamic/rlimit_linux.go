//go:build linux

package dynamic

import (
	"syscall"

	"github.com/oriys/nova/internal/logging"
)

// setMemoryRlimit lowers RLIMIT_AS on the calling process. Rlimits are
// inherited across fork(2), so calling this immediately before cmd.Start
// bounds the child the same way; the limit is never raised back since
// NativeEmbed.Execute holds NativeEmbed's mutex across this call and
// cmd.Start, so each child forks with its own request's ceiling.
func setMemoryRlimit(limitBytes uint64) {
	var cur syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_AS, &cur); err != nil {
		logging.Op().Warn("getrlimit RLIMIT_AS failed", "error", err)
		return
	}
	cur.Cur = limitBytes
	if err := syscall.Setrlimit(syscall.RLIMIT_AS, &cur); err != nil {
		logging.Op().Warn("setrlimit RLIMIT_AS failed", "error", err)
	}
}
