package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsNonZero(t *testing.T) {
	cfg := Default()
	require.Greater(t, cfg.Filter.MaxInstructions, 0)
	require.Greater(t, cfg.Bytecode.TotalSlots, 0)
	require.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFileOverlayPartialDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sandboxctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Greater(t, cfg.Filter.MaxInstructions, 0, "unset fields retain Default()'s values")
}

func TestLoadFileMissingReturnsError(t *testing.T) {
	_, err := LoadFile("/nonexistent/sandboxctl.yaml")
	require.Error(t, err)
}

func TestToBridgeConfigRoundTrips(t *testing.T) {
	cfg := Default()
	bridgeCfg := cfg.ToBridgeConfig()
	require.Equal(t, cfg.Filter.MaxInstructions, bridgeCfg.Filter.MaxInstructions)
	require.Equal(t, cfg.Bytecode.TotalSlots, bridgeCfg.Bytecode.TotalSlots)
}
