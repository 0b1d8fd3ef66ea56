package bytecode

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oriys/nova/internal/shared"
)

func TestRuntimeLifecycle(t *testing.T) {
	ctx := context.Background()
	rt := New(ctx, DefaultConfig())
	defer rt.Close(ctx)

	moduleID, err := rt.Compile(ctx, minimalWasm, shared.LanguageWasm)
	require.NoError(t, err)
	require.NotEqual(t, moduleID, shared.ModuleId{})
}

func TestRuntimeMetricsStartEmpty(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.TotalSlots = 5
	rt := New(ctx, cfg)
	defer rt.Close(ctx)

	metrics := rt.Metrics()
	require.Equal(t, 5, metrics.TotalSlots)
	require.Equal(t, 5, metrics.AvailableSlots)
	require.Equal(t, 0, metrics.CachedModules)
}

func TestRuntimeInstantiateUnknownModuleFails(t *testing.T) {
	ctx := context.Background()
	rt := New(ctx, DefaultConfig())
	defer rt.Close(ctx)

	_, err := rt.Instantiate(ctx, shared.NewModuleId())
	require.Error(t, err)
}

func TestRuntimePoolExhaustion(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.TotalSlots = 1
	rt := New(ctx, cfg)
	defer rt.Close(ctx)

	moduleID, err := rt.Compile(ctx, minimalWasm, shared.LanguageWasm)
	require.NoError(t, err)

	_, err = rt.Instantiate(ctx, moduleID)
	require.NoError(t, err)

	_, err = rt.Instantiate(ctx, moduleID)
	require.Error(t, err)
}

func TestExecuteUnknownInstanceFails(t *testing.T) {
	ctx := context.Background()
	rt := New(ctx, DefaultConfig())
	defer rt.Close(ctx)

	_, err := rt.Execute(ctx, shared.NewInstanceId(), shared.ExecutionConfig{Timeout: 10 * time.Millisecond})
	require.Error(t, err)
}
