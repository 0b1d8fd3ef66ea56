// Package bytecode implements the portable-bytecode backend: a
// wazero-backed compile/cache/instantiate/execute pipeline over a
// memory-slot pool allocated up front (its pages are not touched ahead of
// use), with a watchdog that races execution
// against a deadline and a resource limiter capping per-instance memory.
//
// Grounded on next-rc's runtimes/wasm crate (runtime.rs, compiler.rs,
// module_cache.rs, instance.rs), reimplemented against
// github.com/tetratelabs/wazero in place of wasmtime.
package bytecode

import "time"

// Config mirrors next-rc's WasmConfig defaults: 100 slots of 64MiB.
type Config struct {
	TotalSlots         int
	SlotSizeBytes      int
	MaxInstanceMemory  int
	WatchdogGrace      time.Duration
}

func DefaultConfig() Config {
	return Config{
		TotalSlots:        100,
		SlotSizeBytes:      64 * 1024 * 1024,
		MaxInstanceMemory:  128 * 1024 * 1024,
		WatchdogGrace:      100 * time.Millisecond,
	}
}

const wasmPageSize = 64 * 1024
