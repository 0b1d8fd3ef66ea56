//go:build !linux

package dynamic

// setMemoryRlimit is a no-op off Linux: RLIMIT_AS has no portable
// equivalent, so off Linux native-embed children run without a memory
// ceiling; only the execution timeout bounds them.
func setMemoryRlimit(limitBytes uint64) {}
