package dynamic

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oriys/nova/internal/shared"
	"github.com/oriys/nova/internal/xerr"
)

func TestRuntimeCompileRejectsUnsupportedLanguage(t *testing.T) {
	rt, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	defer rt.Close(context.Background())

	_, err = rt.Compile(context.Background(), []byte("package main"), shared.LanguageGo)
	require.ErrorIs(t, err, xerr.ErrInvalidLanguage)
}

func TestRuntimeExecuteHighTrustUsesNativeEmbed(t *testing.T) {
	rt, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	defer rt.Close(context.Background())

	modID, err := rt.Compile(context.Background(), []byte("print('hi')"), shared.LanguagePython)
	require.NoError(t, err)

	require.False(t, rt.useSandboxed(shared.TrustHigh, "print('hi')"))
	_ = modID
}

func TestRuntimeExecuteLowTrustAlwaysSandboxed(t *testing.T) {
	rt, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	defer rt.Close(context.Background())

	require.True(t, rt.useSandboxed(shared.TrustLow, "print('hi')"))
}

func TestRuntimeExecuteMediumTrustSimpleWorkloadIsSandboxed(t *testing.T) {
	rt, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	defer rt.Close(context.Background())

	require.True(t, rt.useSandboxed(shared.TrustMedium, "x = 1\nif x:\n    print(x)"))
}

func TestRuntimeExecuteUnknownInstanceFails(t *testing.T) {
	rt, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	defer rt.Close(context.Background())

	_, err = rt.Execute(context.Background(), shared.NewInstanceId(), shared.ExecutionConfig{Timeout: time.Second})
	require.ErrorIs(t, err, xerr.ErrInstanceNotFound)
}

func TestRuntimeDestroyUnknownInstanceFails(t *testing.T) {
	rt, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	defer rt.Close(context.Background())

	err = rt.Destroy(context.Background(), shared.NewInstanceId())
	require.ErrorIs(t, err, xerr.ErrInstanceNotFound)
}

func TestRuntimeInstantiateUnknownModuleFails(t *testing.T) {
	rt, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	defer rt.Close(context.Background())

	_, err = rt.Instantiate(context.Background(), shared.NewModuleId())
	require.ErrorIs(t, err, xerr.ErrModuleNotFound)
}

func TestRuntimeCompileInstantiateLifecycle(t *testing.T) {
	rt, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	defer rt.Close(context.Background())

	modID, err := rt.Compile(context.Background(), []byte("print('hi')"), shared.LanguagePython)
	require.NoError(t, err)

	instID, err := rt.Instantiate(context.Background(), modID)
	require.NoError(t, err)

	err = rt.Destroy(context.Background(), instID)
	require.NoError(t, err)

	_, err = rt.Instantiate(context.Background(), modID)
	require.NoError(t, err, "module remains cached after an instance is destroyed")
}

func TestRuntimeMetricsStartEmpty(t *testing.T) {
	rt, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	defer rt.Close(context.Background())

	m := rt.Metrics()
	require.Zero(t, m.CachedModules)
}

func TestRuntimeType(t *testing.T) {
	rt, err := New(context.Background(), DefaultConfig())
	require.NoError(t, err)
	defer rt.Close(context.Background())

	require.Equal(t, shared.RuntimeTypeDynamicLanguage, rt.Type())
}
