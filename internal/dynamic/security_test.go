package dynamic

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oriys/nova/internal/shared"
)

func TestRestrictionsExactDefaults(t *testing.T) {
	sm := NewSecurityManager()

	low := sm.GetRestrictions(shared.TrustLow)
	require.EqualValues(t, 128, low.MaxMemoryMB)
	require.EqualValues(t, 30000, low.MaxExecutionTimeMs)
	require.False(t, low.NetworkAccess)
	require.False(t, low.FileSystemAccess)
	require.False(t, low.SubprocessAccess)
	require.True(t, low.UseSeccomp)
	require.True(t, low.UseNamespaces)

	medium := sm.GetRestrictions(shared.TrustMedium)
	require.EqualValues(t, 512, medium.MaxMemoryMB)
	require.True(t, medium.NetworkAccess)
	require.True(t, medium.FileSystemAccess)
	require.False(t, medium.SubprocessAccess)

	high := sm.GetRestrictions(shared.TrustHigh)
	require.EqualValues(t, 2048, high.MaxMemoryMB)
	require.True(t, high.NetworkAccess)
	require.True(t, high.FileSystemAccess)
	require.True(t, high.SubprocessAccess)
	require.False(t, high.UseSeccomp)
	require.False(t, high.UseNamespaces)
}

func TestValidateCodeBlocksImport(t *testing.T) {
	sm := NewSecurityManager()
	err := sm.ValidateCode("import os\nos.system('ls')", shared.TrustLow)
	require.Error(t, err)
}

func TestValidateCodeBlocksFunction(t *testing.T) {
	sm := NewSecurityManager()
	err := sm.ValidateCode("eval('1+1')", shared.TrustMedium)
	require.Error(t, err)
}

func TestValidateCodeBlocksDangerousPattern(t *testing.T) {
	sm := NewSecurityManager()
	err := sm.ValidateCode("x = __import__('os')", shared.TrustHigh)
	require.Error(t, err)
}

func TestValidateCodeAllowsPlainArithmetic(t *testing.T) {
	sm := NewSecurityManager()
	err := sm.ValidateCode("print(1 + 2)", shared.TrustLow)
	require.NoError(t, err)
}
