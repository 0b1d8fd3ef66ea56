// Package xerr defines the error taxonomy shared by every backend. Each
// sentinel is wrapped with context via fmt.Errorf("...: %w", Err...) at the
// call site.
package xerr

import "errors"

var (
	// ErrCompilation covers failures translating source/bytecode into a
	// loadable module (verifier rejection, malformed WASM, bad ELF section).
	ErrCompilation = errors.New("compilation failed")

	// ErrInstantiation covers failures turning a compiled module into a
	// runnable instance (module instantiation or linker failure; memory
	// slot exhaustion is reported as ErrMemory).
	ErrInstantiation = errors.New("instantiation failed")

	// ErrExecution covers failures during a running instance's execution.
	ErrExecution = errors.New("execution failed")

	// ErrMemory covers memory pool allocation failures.
	ErrMemory = errors.New("memory allocation failed")

	// ErrSecurity covers a trust-policy violation. Callers that need the
	// offending policy clause should wrap with fmt.Errorf and include it.
	ErrSecurity = errors.New("security violation")

	// ErrTimeout is returned when an execution did not finish inside its
	// configured deadline.
	ErrTimeout = errors.New("timeout exceeded")

	// ErrModuleNotFound is returned when a ModuleId has no cached module.
	ErrModuleNotFound = errors.New("module not found")

	// ErrInstanceNotFound is returned when an InstanceId has no live instance.
	ErrInstanceNotFound = errors.New("instance not found")

	// ErrInvalidLanguage is returned when a backend cannot compile the
	// requested source language.
	ErrInvalidLanguage = errors.New("invalid language")

	// ErrResourceLimitExceeded is returned when an instance exceeds a
	// configured resource ceiling (memory, instruction count, fuel).
	ErrResourceLimitExceeded = errors.New("resource limit exceeded")

	// ErrInternal covers anything that doesn't fit the above and indicates
	// a bug rather than a caller mistake.
	ErrInternal = errors.New("internal error")

	// ErrNotImplemented marks a documented open question left unresolved
	// rather than silently guessed at.
	ErrNotImplemented = errors.New("not implemented")
)
