package bytecode

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"

	"github.com/oriys/nova/internal/shared"
)

// ModuleMetadata is everything derivable from a compiled module beyond its
// raw bytes: its exported/imported names, its declared memory pages, and
// its discovered entry point. Ported from next-rc's
// module_cache.rs::ModuleMetadata/extract_metadata.
type ModuleMetadata struct {
	EntryPoint   string
	MemoryPages  uint32
	Exports      []string
	Imports      []string
}

// CompiledModule pairs a wazero-compiled module with its extracted
// metadata.
type CompiledModule struct {
	Module   wazero.CompiledModule
	Metadata ModuleMetadata
}

// ModuleCache is a concurrent ModuleId -> CompiledModule registry.
type ModuleCache struct {
	runtime wazero.Runtime

	mu    sync.RWMutex
	cache map[shared.ModuleId]*CompiledModule
}

func NewModuleCache(runtime wazero.Runtime) *ModuleCache {
	return &ModuleCache{runtime: runtime, cache: make(map[shared.ModuleId]*CompiledModule)}
}

// CompileAndCache compiles wasmBytes with the runtime's shared engine,
// extracts metadata, and stores the result under id.
func (c *ModuleCache) CompileAndCache(ctx context.Context, id shared.ModuleId, wasmBytes []byte) (*CompiledModule, error) {
	compiled, err := c.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, fmt.Errorf("compile wasm module: %w", err)
	}

	metadata := extractMetadata(compiled)
	entry := &CompiledModule{Module: compiled, Metadata: metadata}

	c.mu.Lock()
	c.cache[id] = entry
	c.mu.Unlock()

	return entry, nil
}

func extractMetadata(m wazero.CompiledModule) ModuleMetadata {
	exportsMap := m.ExportedFunctions()
	exports := make([]string, 0, len(exportsMap))
	for name := range exportsMap {
		exports = append(exports, name)
	}

	importsList := m.ImportedFunctions()
	imports := make([]string, 0, len(importsList))
	for _, def := range importsList {
		moduleName, name, _ := def.Import()
		imports = append(imports, fmt.Sprintf("%s::%s", moduleName, name))
	}

	var memoryPages uint32
	for _, mem := range m.ExportedMemories() {
		memoryPages = mem.Min()
		break
	}

	entryPoint := ""
	for _, candidate := range []string{"_start", "main"} {
		if _, ok := exportsMap[candidate]; ok {
			entryPoint = candidate
			break
		}
	}

	return ModuleMetadata{
		EntryPoint:  entryPoint,
		MemoryPages: memoryPages,
		Exports:     exports,
		Imports:     imports,
	}
}

func (c *ModuleCache) Get(id shared.ModuleId) (*CompiledModule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.cache[id]
	return m, ok
}

func (c *ModuleCache) Remove(id shared.ModuleId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cache, id)
}

func (c *ModuleCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
