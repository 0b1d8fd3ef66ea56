package bridge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oriys/nova/internal/dispatcher"
	"github.com/oriys/nova/internal/shared"
)

func TestControllerGetStatusBeforeInitialize(t *testing.T) {
	c := New()
	status := c.GetStatus()
	require.False(t, status.Initialized)
	require.Nil(t, status.AvailableRuntimes)
}

func TestControllerInitializeIsIdempotent(t *testing.T) {
	c := New()
	ctx := context.Background()

	require.NoError(t, c.Initialize(ctx, DefaultConfig()))
	require.NoError(t, c.Initialize(ctx, DefaultConfig()))

	status := c.GetStatus()
	require.True(t, status.Initialized)
	require.Len(t, status.AvailableRuntimes, 3)

	require.NoError(t, c.Shutdown(ctx))
}

func TestControllerGetAvailableRuntimesAfterInit(t *testing.T) {
	c := New()
	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx, DefaultConfig()))
	defer c.Shutdown(ctx)

	runtimes := c.GetAvailableRuntimes()
	require.Contains(t, runtimes, shared.RuntimeTypePacketFilter.String())
	require.Contains(t, runtimes, shared.RuntimeTypePortableBytecode.String())
	require.Contains(t, runtimes, shared.RuntimeTypeDynamicLanguage.String())
}

func TestControllerGetPerformanceMetricsAfterInit(t *testing.T) {
	c := New()
	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx, DefaultConfig()))
	defer c.Shutdown(ctx)

	metrics := c.GetPerformanceMetrics()
	require.Len(t, metrics, 3)
}

func TestControllerSubmitBeforeInitializeFails(t *testing.T) {
	c := New()
	_, err := c.Submit(context.Background(), shared.LanguageC, []byte("int main(){return 0;}"), dispatcher.HintAuto, shared.ExecutionConfig{
		Timeout:     time.Second,
		Permissions: shared.NewPermissions(shared.TrustHigh),
	})
	require.Error(t, err)
}

func TestControllerSubmitRoutesNonDynamicLanguageToBytecode(t *testing.T) {
	c := New()
	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx, DefaultConfig()))
	defer c.Shutdown(ctx)

	result, err := c.Submit(ctx, shared.LanguageC, []byte("int main(){return 0;}"), dispatcher.HintAuto, shared.ExecutionConfig{
		Timeout:     5 * time.Second,
		Permissions: shared.NewPermissions(shared.TrustHigh),
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	status := c.GetStatus()
	require.Equal(t, 0, status.ActiveInstances, "Submit destroys its instance before returning")
}

func TestControllerSubmitExplicitFilterHint(t *testing.T) {
	c := New()
	ctx := context.Background()
	require.NoError(t, c.Initialize(ctx, DefaultConfig()))
	defer c.Shutdown(ctx)

	result, err := c.Submit(ctx, shared.LanguageC, []byte("int main(){return 0;}"), dispatcher.HintPacketFilter, shared.ExecutionConfig{
		Timeout:     5 * time.Second,
		Permissions: shared.NewPermissions(shared.TrustHigh),
		Input:       []byte("0123456789012345678901234"),
	})
	require.NoError(t, err)
	require.True(t, result.Success)
}
