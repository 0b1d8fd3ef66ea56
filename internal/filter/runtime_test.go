package filter

import (
	"context"
	"testing"
	"time"

	"github.com/oriys/nova/internal/shared"
)

func TestRuntimeLifecycle(t *testing.T) {
	rt := New(DefaultConfig())
	ctx := context.Background()

	moduleID, err := rt.Compile(ctx, acceptProgram(), shared.LanguageWasm)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	instanceID, err := rt.Instantiate(ctx, moduleID)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}

	cfg := shared.ExecutionConfig{
		Timeout:     time.Millisecond,
		MemoryLimit: 1024,
		Permissions: shared.NewPermissions(shared.TrustLow),
	}

	result, err := rt.Execute(ctx, instanceID, cfg)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}

	if err := rt.Destroy(ctx, instanceID); err != nil {
		t.Fatalf("destroy: %v", err)
	}
}

func TestRuntimeExecuteFilter(t *testing.T) {
	rt := New(DefaultConfig())
	program := FromBytecode(acceptProgram(), ProgramTypeFilter)

	result, err := rt.ExecuteFilter(context.Background(), program, []byte("test packet"))
	if err != nil {
		t.Fatalf("execute filter: %v", err)
	}
	if result.Action != FilterActionAccept {
		t.Fatalf("expected accept, got %v", result.Action)
	}
}

func TestRuntimeMemoryPoolExhaustion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PoolSlots = 1
	rt := New(cfg)
	ctx := context.Background()

	moduleID, err := rt.Compile(ctx, acceptProgram(), shared.LanguageWasm)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if _, err := rt.Instantiate(ctx, moduleID); err != nil {
		t.Fatalf("first instantiate: %v", err)
	}
	if _, err := rt.Instantiate(ctx, moduleID); err == nil {
		t.Fatal("expected second instantiate to fail with pool exhausted")
	}
}

func TestRuntimeInstanceNotFound(t *testing.T) {
	rt := New(DefaultConfig())
	ctx := context.Background()
	if err := rt.Destroy(ctx, shared.NewInstanceId()); err == nil {
		t.Fatal("expected instance-not-found error")
	}
}
