// Package dispatcher implements the controller's single selection point:
// given an execution request's language and an optional explicit runtime
// hint, decide which of the three backends (packet-filter,
// portable-bytecode, dynamic-language) should run it. The choice is by
// source language, not by trust level or workload shape: those inform
// decisions made inside the dynamic-language backend once it already owns
// the request.
//
// Grounded on next-rc's runtimes/python/src/scheduler.rs::PythonScheduler
// for the performance-history bookkeeping (PerformanceHistory.Record/
// Averages), generalized from its original PyO3-vs-Wasm accounting to this
// controller's full backend set.
package dispatcher

import (
	"github.com/oriys/nova/internal/dynamic"
	"github.com/oriys/nova/internal/shared"
)

// Hint lets a caller force a backend instead of letting the dispatcher
// decide, mirroring next-rc's PythonRuntimeType-as-hint field. HintAuto is
// the "Hybrid" case from scheduler.rs: the caller asks for intelligent
// selection rather than naming a backend.
type Hint int

const (
	HintAuto Hint = iota
	HintPacketFilter
	HintPortableBytecode
	HintDynamicLanguage
)

// Request carries everything the dispatcher needs to make a decision. It
// does not carry the backends themselves: Dispatcher.Select only returns
// a shared.RuntimeType; the bridge owns routing to an actual Backend.
type Request struct {
	Language    shared.Language
	Permissions shared.Permissions
	Code        string
	Hint        Hint
}

// Dispatcher holds the moving-average performance history fed back by
// RecordResult; it no longer picks a backend from workload shape itself
// (see Select).
type Dispatcher struct {
	history *PerformanceHistory
}

func New() *Dispatcher {
	return &Dispatcher{
		history: NewPerformanceHistory(),
	}
}

// Select applies the selection rules in a fixed order: an explicit hint
// wins outright; otherwise a dynamic source language (Python/JS/TS) always
// resolves to the dynamic-language backend, and anything else resolves to
// portable-bytecode. Trust level and workload shape no longer choose
// between backends here: that axis is internal to the dynamic-language
// backend, which picks its own native-vs-sandboxed sub-runtime from trust
// level and code shape (see dynamic.Runtime.useSandboxed). Routing
// untrusted Python/JS source to portable-bytecode here would bypass that
// backend's SecurityManager entirely, since the bytecode compiler only
// accepts Wasm.
func (d *Dispatcher) Select(req Request) shared.RuntimeType {
	switch req.Hint {
	case HintPacketFilter:
		return shared.RuntimeTypePacketFilter
	case HintPortableBytecode:
		return shared.RuntimeTypePortableBytecode
	case HintDynamicLanguage:
		return shared.RuntimeTypeDynamicLanguage
	}

	if classifyLanguage(req.Language) {
		return shared.RuntimeTypeDynamicLanguage
	}
	return shared.RuntimeTypePortableBytecode
}

// RecordResult feeds an execution outcome back into the performance
// history, which tracks per-workload moving averages across the two
// compiled backends independent of how Select routes requests.
func (d *Dispatcher) RecordResult(runtime shared.RuntimeType, workload dynamic.WorkloadType, executionTimeMs float64, success bool) {
	d.history.Record(runtime, workload, executionTimeMs, success)
}

// classifyLanguage reports whether a source language is handled by the
// dynamic-language backend at all; Rust/C/C++/Go/Wasm always compile
// through portable-bytecode (or packet-filter, for an explicit hint) since
// the dynamic backend's sub-runtimes are Python/JS-oriented.
func classifyLanguage(lang shared.Language) bool {
	switch lang {
	case shared.LanguagePython, shared.LanguageJavaScript, shared.LanguageTypeScript:
		return true
	default:
		return false
	}
}
