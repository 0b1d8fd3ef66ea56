package filter

import (
	"bytes"
	"debug/elf"
	"fmt"
	"strings"
	"sync"

	"github.com/oriys/nova/internal/shared"
)

// ProgramType classifies a program by the kernel attachment point its
// section name implies. Only Filter is actually executed by this backend;
// the others are retained so compile() preserves the full classification
// the original ELF-section metadata carries (supplemented feature, spec
// §3 "Filter program" data model).
type ProgramType int

const (
	ProgramTypeFilter ProgramType = iota
	ProgramTypeXDPAction
	ProgramTypeSocketFilter
	ProgramTypeTracePoint
	ProgramTypeKProbe
	ProgramTypeUProbe
)

func (t ProgramType) String() string {
	switch t {
	case ProgramTypeFilter:
		return "filter"
	case ProgramTypeXDPAction:
		return "xdp"
	case ProgramTypeSocketFilter:
		return "socket"
	case ProgramTypeTracePoint:
		return "tracepoint"
	case ProgramTypeKProbe:
		return "kprobe"
	case ProgramTypeUProbe:
		return "uprobe"
	default:
		return "unknown"
	}
}

// MapType names the eBPF map kind a MapDefinition declares. Declared for
// fidelity with the filter program's data model; this backend doesn't back
// these with live kernel maps, only carries the declaration through.
type MapType int

const (
	MapTypeHash MapType = iota
	MapTypeArray
	MapTypeProgArray
	MapTypePercpuHash
	MapTypePercpuArray
	MapTypeLRUHash
	MapTypeLPMTrie
)

// MapDefinition is one declared map a filter program references.
type MapDefinition struct {
	Name       string
	Type       MapType
	KeySize    uint32
	ValueSize  uint32
	MaxEntries uint32
}

// ProgramMetadata carries everything derivable from a program's ELF
// section beyond the raw bytecode.
type ProgramMetadata struct {
	Name    string
	Section string
	License string
	Maps    []MapDefinition
}

// Program is a verified-or-verifiable filter program plus its metadata.
type Program struct {
	ID       shared.ModuleId
	Bytecode []byte
	Type     ProgramType
	Metadata ProgramMetadata
}

// FromBytecode wraps raw bytecode handed to Compile directly (the common
// case: the caller already has eBPF-shaped bytecode, not an ELF object).
func FromBytecode(bytecode []byte, progType ProgramType) *Program {
	return &Program{
		ID:       shared.NewModuleId(),
		Bytecode: append([]byte(nil), bytecode...),
		Type:     progType,
		Metadata: ProgramMetadata{Name: "inline", Section: "inline"},
	}
}

// FromELF extracts a named section from a compiled ELF object, classifying
// the program type from the section name and pulling the license string
// out of ".license" if present. Ported from next-rc's
// EbpfProgram::from_elf/extract_metadata/determine_program_type.
func FromELF(elfBytes []byte, section string) (*Program, error) {
	f, err := elf.NewFile(bytes.NewReader(elfBytes))
	if err != nil {
		return nil, fmt.Errorf("parse elf: %w", err)
	}
	defer f.Close()

	sec := f.Section(section)
	if sec == nil {
		return nil, fmt.Errorf("section %s not found", section)
	}
	bytecode, err := sec.Data()
	if err != nil {
		return nil, fmt.Errorf("read section %s: %w", section, err)
	}

	license := ""
	if lic := f.Section(".license"); lic != nil {
		if data, err := lic.Data(); err == nil {
			license = strings.TrimRight(string(data), "\x00")
		}
	}

	name := section
	if idx := strings.LastIndex(section, "/"); idx >= 0 {
		name = section[idx+1:]
	}

	return &Program{
		ID:       shared.NewModuleId(),
		Bytecode: bytecode,
		Type:     determineProgramType(section),
		Metadata: ProgramMetadata{
			Name:    name,
			Section: section,
			License: license,
			Maps:    nil, // map-section parsing is not implemented
		},
	}, nil
}

func determineProgramType(section string) ProgramType {
	switch {
	case strings.HasPrefix(section, "filter/"):
		return ProgramTypeFilter
	case strings.HasPrefix(section, "xdp/"):
		return ProgramTypeXDPAction
	case strings.HasPrefix(section, "socket/"):
		return ProgramTypeSocketFilter
	case strings.HasPrefix(section, "tracepoint/"):
		return ProgramTypeTracePoint
	case strings.HasPrefix(section, "kprobe/"):
		return ProgramTypeKProbe
	case strings.HasPrefix(section, "uprobe/"):
		return ProgramTypeUProbe
	default:
		return ProgramTypeFilter
	}
}

// ProgramCache is a concurrent-safe ModuleId -> Program registry.
// Read-heavy, rarely written, so it uses an RWMutex.
type ProgramCache struct {
	mu       sync.RWMutex
	programs map[shared.ModuleId]*Program
}

func NewProgramCache() *ProgramCache {
	return &ProgramCache{programs: make(map[shared.ModuleId]*Program)}
}

func (c *ProgramCache) Insert(p *Program) shared.ModuleId {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.programs[p.ID] = p
	return p.ID
}

func (c *ProgramCache) Get(id shared.ModuleId) (*Program, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.programs[id]
	return p, ok
}

func (c *ProgramCache) Remove(id shared.ModuleId) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.programs, id)
}

func (c *ProgramCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.programs)
}
