// Package shared holds the primitives every backend depends on: opaque
// module/instance identifiers, trust levels and capabilities, the memory
// slot pool abstraction, execution config/result types, and the lifecycle
// interface backends implement. None of this crosses a backend boundary in
// its internal form; at the bridge (internal/bridge) ids are encoded as
// canonical 36-character hex-and-dash strings.
package shared

import "github.com/google/uuid"

// ModuleId identifies a compiled module within a single backend's cache.
// It is never valid across backends.
type ModuleId uuid.UUID

// InstanceId identifies a live instance within a single backend's registry.
type InstanceId uuid.UUID

// NewModuleId mints a fresh random module identifier.
func NewModuleId() ModuleId { return ModuleId(uuid.New()) }

// NewInstanceId mints a fresh random instance identifier.
func NewInstanceId() InstanceId { return InstanceId(uuid.New()) }

func (id ModuleId) String() string   { return uuid.UUID(id).String() }
func (id InstanceId) String() string { return uuid.UUID(id).String() }

// ParseModuleId decodes the canonical string form produced by String().
func ParseModuleId(s string) (ModuleId, error) {
	u, err := uuid.Parse(s)
	return ModuleId(u), err
}

// ParseInstanceId decodes the canonical string form produced by String().
func ParseInstanceId(s string) (InstanceId, error) {
	u, err := uuid.Parse(s)
	return InstanceId(u), err
}

// Language identifies the source language handed to Backend.Compile.
type Language int

const (
	LanguageRust Language = iota
	LanguageJavaScript
	LanguageTypeScript
	LanguagePython
	LanguageGo
	LanguageC
	LanguageCpp
	LanguageWasm
)

func (l Language) String() string {
	switch l {
	case LanguageRust:
		return "rust"
	case LanguageJavaScript:
		return "javascript"
	case LanguageTypeScript:
		return "typescript"
	case LanguagePython:
		return "python"
	case LanguageGo:
		return "go"
	case LanguageC:
		return "c"
	case LanguageCpp:
		return "cpp"
	case LanguageWasm:
		return "wasm"
	default:
		return "unknown"
	}
}

// RuntimeType names a backend. It is the tag used by the dispatcher's
// closed 3-way selection rather than a dynamic interface registry.
type RuntimeType int

const (
	RuntimeTypePacketFilter RuntimeType = iota
	RuntimeTypePortableBytecode
	RuntimeTypeDynamicLanguage
)

func (t RuntimeType) String() string {
	switch t {
	case RuntimeTypePacketFilter:
		return "filter"
	case RuntimeTypePortableBytecode:
		return "bytecode"
	case RuntimeTypeDynamicLanguage:
		return "dynamic"
	default:
		return "unknown"
	}
}

// RuntimeMetrics is the per-backend metrics snapshot behind
// get_performance_metrics.
type RuntimeMetrics struct {
	ColdStartLatencyNs    int64
	MemoryOverheadBytes   uint64
	ExecutionOverheadPct  float32
	AvailableSlots        int
	TotalSlots            int
	CachedModules         int
}
