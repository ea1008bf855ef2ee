package arena

import (
	"context"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/errors"
)

// nullGuard keeps the first bytes of memory unused so no allocation sits at
// the null pointer.
const nullGuard = 16

// Space is a native address space: Go-owned memory, an allocator over it, a
// table of Go functions, a caller stack and host trampolines.
type Space struct {
	mem   *Memory
	alloc *Allocator
	table *Table
	stack *abi.Stack
	tramp *abi.Trampolines
}

// New creates a native address space.
func New(cfg Config) (*Space, error) {
	cfg = cfg.withDefaults()
	heapBase := alignUp(nullGuard+cfg.StackSize, 8)
	if uint64(heapBase) > uint64(cfg.MaxPages)*PageSize {
		return nil, errors.InvalidInput(errors.PhaseLoad, "caller stack does not fit in the page limit")
	}

	mem := NewMemory(cfg.InitialPages, cfg.MaxPages)
	for mem.Size() < heapBase {
		if _, ok := mem.Grow(1); !ok {
			return nil, errors.AllocationFailed(errors.PhaseLoad, heapBase, 8)
		}
	}

	s := &Space{
		mem:   mem,
		alloc: NewAllocator(mem, heapBase),
		table: NewTable(),
		stack: abi.NewStack(mem, nullGuard, cfg.StackSize),
	}

	call := s.table.Register(func(ctx context.Context, args []uint64) (uint64, error) {
		if len(args) == 0 {
			return 0, errors.InvalidInput(errors.PhaseInvoke, "host closure called without state")
		}
		return s.tramp.Dispatch(ctx, abi.Ptr(args[0]), args[1:])
	})
	drop := s.table.Register(func(_ context.Context, args []uint64) (uint64, error) {
		if len(args) > 0 {
			s.tramp.Drop(abi.Ptr(args[0]))
		}
		return 0, nil
	})
	s.tramp = abi.NewTrampolines(call, drop)

	return s, nil
}

// Memory returns the space's linear memory.
func (s *Space) Memory() abi.Memory { return s.mem }

// Table returns the function table.
func (s *Space) Table() abi.Caller { return s.table }

// Stack returns the caller stack.
func (s *Space) Stack() *abi.Stack { return s.stack }

// Trampolines returns the host closure source.
func (s *Space) Trampolines() *abi.Trampolines { return s.tramp }

// Allocator returns the heap allocator.
func (s *Space) Allocator() *Allocator { return s.alloc }

// Funcs returns the table for registering Go functions.
func (s *Space) Funcs() *Table { return s.table }

// Arena returns the raw memory.
func (s *Space) Arena() *Memory { return s.mem }

var _ abi.Space = (*Space)(nil)
