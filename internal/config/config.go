// Package config loads the sandbox execution controller's configuration:
// pool sizing per backend, verifier limits, and logging level/format.
// A struct-of-structs document with a DefaultConfig-then-overlay loader
// and env var overrides, loaded from YAML via gopkg.in/yaml.v3.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oriys/nova/internal/bridge"
	"github.com/oriys/nova/internal/bytecode"
	"github.com/oriys/nova/internal/dynamic"
	"github.com/oriys/nova/internal/filter"
)

// FilterConfig mirrors filter.Config with yaml tags for on-disk overrides.
type FilterConfig struct {
	MaxInstructions int  `yaml:"max_instructions"`
	AllowUnsafe     bool `yaml:"allow_unsafe"`
	PoolSlots       int  `yaml:"pool_slots"`
	PoolSlotBytes   int  `yaml:"pool_slot_bytes"`
}

// BytecodeConfig mirrors bytecode.Config with yaml tags.
type BytecodeConfig struct {
	TotalSlots        int           `yaml:"total_slots"`
	SlotSizeBytes     int           `yaml:"slot_size_bytes"`
	MaxInstanceMemory int           `yaml:"max_instance_memory"`
	WatchdogGrace     time.Duration `yaml:"watchdog_grace"`
}

// DynamicConfig mirrors dynamic.NativeEmbedConfig with yaml tags.
type DynamicConfig struct {
	InterpreterPath string `yaml:"interpreter_path"`
	WorkDir         string `yaml:"work_dir"`
}

// LoggingConfig holds the operational logger's level and format as loaded
// from the file and environment; sandboxctl does not apply it to the
// logger, whose level it sets from SANDBOXCTL_LOG_LEVEL directly.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Config is the root configuration document.
type Config struct {
	Filter   FilterConfig   `yaml:"filter"`
	Bytecode BytecodeConfig `yaml:"bytecode"`
	Dynamic  DynamicConfig  `yaml:"dynamic"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Default returns a Config seeded from each backend's own DefaultConfig,
// the way oriys-nova's DefaultConfig seeds from firecracker.DefaultConfig()/
// docker.DefaultConfig().
func Default() Config {
	f := filter.DefaultConfig()
	b := bytecode.DefaultConfig()
	d := dynamic.DefaultNativeEmbedConfig()

	return Config{
		Filter: FilterConfig{
			MaxInstructions: f.MaxInstructions,
			AllowUnsafe:     f.AllowUnsafe,
			PoolSlots:       f.PoolSlots,
			PoolSlotBytes:   f.PoolSlotBytes,
		},
		Bytecode: BytecodeConfig{
			TotalSlots:        b.TotalSlots,
			SlotSizeBytes:     b.SlotSizeBytes,
			MaxInstanceMemory: b.MaxInstanceMemory,
			WatchdogGrace:     b.WatchdogGrace,
		},
		Dynamic: DynamicConfig{
			InterpreterPath: d.InterpreterPath,
			WorkDir:         d.WorkDir,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFile reads a YAML config file, overlaying it on top of Default() so
// a partial file only needs to name the fields it overrides.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	loadFromEnv(&cfg)
	return cfg, nil
}

// loadFromEnv applies the small set of env var overrides this system
// supports.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("SANDBOXCTL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SANDBOXCTL_INTERPRETER_PATH"); v != "" {
		cfg.Dynamic.InterpreterPath = v
	}
}

// ToBridgeConfig converts the on-disk shape into the struct each backend's
// constructor actually takes.
func (c Config) ToBridgeConfig() bridge.Config {
	dyn := dynamic.DefaultConfig()
	dyn.Native.InterpreterPath = c.Dynamic.InterpreterPath
	dyn.Native.WorkDir = c.Dynamic.WorkDir

	return bridge.Config{
		Filter: filter.Config{
			MaxInstructions: c.Filter.MaxInstructions,
			AllowUnsafe:     c.Filter.AllowUnsafe,
			PoolSlots:       c.Filter.PoolSlots,
			PoolSlotBytes:   c.Filter.PoolSlotBytes,
		},
		Bytecode: bytecode.Config{
			TotalSlots:        c.Bytecode.TotalSlots,
			SlotSizeBytes:     c.Bytecode.SlotSizeBytes,
			MaxInstanceMemory: c.Bytecode.MaxInstanceMemory,
			WatchdogGrace:     c.Bytecode.WatchdogGrace,
		},
		Dynamic: dyn,
	}
}
