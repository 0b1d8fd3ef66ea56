package shared

import (
	"sync"
	"sync/atomic"
)

// MemorySlot is a handle to one pre-allocated buffer inside a Pool. The
// backing array is owned by the Pool for its whole lifetime; slots never
// individually grow or shrink.
type MemorySlot struct {
	Bytes  []byte
	SlotID int
}

// Pool is a fixed-capacity set of equally-sized memory slots. It never
// blocks on Allocate (callers get ErrMemory on exhaustion instead of
// waiting) and Release never fails; the released buffer is zeroed before
// it re-enters the free queue so no residue from one instance's memory can
// leak into the next.
//
// # Invariants
//
//   - AvailableSlots() + checked-out count always equals TotalSlots().
//   - A released slot is always zeroed before it becomes allocatable again.
//
// Modeled on next-rc's EbpfMemoryPool/WasmMemoryPool (free VecDeque +
// atomic available counter), using the same mutex-plus-atomic-counter
// discipline Go pool implementations in this codebase favor.
type Pool struct {
	mu        sync.Mutex
	free      []*MemorySlot
	all       []*MemorySlot
	slotSize  int
	available atomic.Int64
}

// NewPool pre-allocates totalSlots buffers of slotSize bytes each.
func NewPool(totalSlots, slotSize int) *Pool {
	p := &Pool{
		free:     make([]*MemorySlot, 0, totalSlots),
		all:      make([]*MemorySlot, 0, totalSlots),
		slotSize: slotSize,
	}
	for i := 0; i < totalSlots; i++ {
		slot := &MemorySlot{Bytes: make([]byte, slotSize), SlotID: i}
		p.free = append(p.free, slot)
		p.all = append(p.all, slot)
	}
	p.available.Store(int64(totalSlots))
	return p
}

// Allocate pops one free slot. It returns ok=false instead of blocking when
// the pool is exhausted; callers translate that into xerr.ErrMemory.
func (p *Pool) Allocate() (*MemorySlot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	if n == 0 {
		return nil, false
	}
	slot := p.free[n-1]
	p.free = p.free[:n-1]
	p.available.Add(-1)
	return slot, true
}

// Release zeroes the slot and returns it to the free list. It does not
// check where the slot came from: a slot that did not originate from this
// pool's Allocate is added to the free list all the same, growing it past
// TotalSlots, so callers only release slots they actually allocated.
func (p *Pool) Release(slot *MemorySlot) {
	for i := range slot.Bytes {
		slot.Bytes[i] = 0
	}
	p.mu.Lock()
	p.free = append(p.free, slot)
	p.mu.Unlock()
	p.available.Add(1)
}

// TotalSlots returns the fixed slot count the pool was constructed with.
func (p *Pool) TotalSlots() int { return len(p.all) }

// AvailableSlots returns the current free-slot count.
func (p *Pool) AvailableSlots() int { return int(p.available.Load()) }

// SlotSize returns the fixed byte size of every slot.
func (p *Pool) SlotSize() int { return p.slotSize }
