package arena

import (
	"math"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-ffi/errors"
)

// minBlock is the smallest block handed out, so every allocation has a
// distinct address.
const minBlock = 4

type block struct {
	addr uint32
	size uint32
}

// Allocator is a first-fit allocator over a region of Memory that starts at
// base and extends to the end of memory. Adjacent free blocks are
// coalesced. It grows memory when no free block fits.
type Allocator struct {
	mu   sync.Mutex
	mem  *Memory
	free []block
	live map[uint32]uint32
}

// NewAllocator manages [base, mem.Size()).
func NewAllocator(mem *Memory, base uint32) *Allocator {
	a := &Allocator{
		mem:  mem,
		live: make(map[uint32]uint32),
	}
	if base < mem.Size() {
		a.free = append(a.free, block{addr: base, size: mem.Size() - base})
	}
	return a
}

func alignUp(v, align uint32) uint32 {
	return (v + align - 1) &^ (align - 1)
}

// Alloc returns a pointer to size bytes aligned to align, which must be a
// power of two.
func (a *Allocator) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseLayout, "alignment must be a power of two")
	}
	// rounding and growth below must stay within 32 bits
	if uint64(size)+uint64(align)+minBlock > math.MaxUint32-PageSize {
		return 0, errors.AllocationFailed(errors.PhaseLayout, size, align)
	}
	size = alignUp(max(size, minBlock), minBlock)

	a.mu.Lock()
	defer a.mu.Unlock()

	for {
		if p, ok := a.take(size, align); ok {
			return p, nil
		}
		if !a.grow(size + align) {
			return 0, errors.AllocationFailed(errors.PhaseLayout, size, align)
		}
	}
}

func (a *Allocator) take(size, align uint32) (uint32, bool) {
	for i, b := range a.free {
		start := alignUp(b.addr, align)
		end := uint64(start) + uint64(size)
		if end > uint64(b.addr)+uint64(b.size) {
			continue
		}
		var repl []block
		if start > b.addr {
			repl = append(repl, block{addr: b.addr, size: start - b.addr})
		}
		if tail := b.addr + b.size - uint32(end); tail > 0 {
			repl = append(repl, block{addr: uint32(end), size: tail})
		}
		a.free = slices.Replace(a.free, i, i+1, repl...)
		a.live[start] = size
		return start, true
	}
	return 0, false
}

func (a *Allocator) grow(need uint32) bool {
	pages := (need + PageSize - 1) / PageSize
	prev, ok := a.mem.Grow(pages)
	if !ok {
		return false
	}
	a.insert(block{addr: prev * PageSize, size: pages * PageSize})
	return true
}

func (a *Allocator) insert(nb block) {
	i, _ := slices.BinarySearchFunc(a.free, nb.addr, func(b block, addr uint32) int {
		switch {
		case b.addr < addr:
			return -1
		case b.addr > addr:
			return 1
		}
		return 0
	})
	a.free = slices.Insert(a.free, i, nb)

	if i+1 < len(a.free) && a.free[i].addr+a.free[i].size == a.free[i+1].addr {
		a.free[i].size += a.free[i+1].size
		a.free = slices.Delete(a.free, i+1, i+2)
	}
	if i > 0 && a.free[i-1].addr+a.free[i-1].size == a.free[i].addr {
		a.free[i-1].size += a.free[i].size
		a.free = slices.Delete(a.free, i, i+1)
	}
}

// Free returns a block to the allocator. Freeing a pointer that is not a
// live allocation is logged and ignored.
func (a *Allocator) Free(ptr uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	size, ok := a.live[ptr]
	if !ok {
		Logger().Warn("free of unknown pointer",
			zap.Uint32("ptr", ptr),
			zap.Int("live", len(a.live)))
		return
	}
	delete(a.live, ptr)
	a.insert(block{addr: ptr, size: size})
}

// Live returns the number of outstanding allocations.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

// Owns reports whether ptr is a live allocation.
func (a *Allocator) Owns(ptr uint32) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.live[ptr]
	return ok
}
