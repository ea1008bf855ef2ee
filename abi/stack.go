package abi

import (
	"github.com/wippyai/wasm-ffi/errors"
)

// Stack is scratch memory owned by the importing side: a LIFO region inside
// the address space where call arguments such as key views are staged before
// a call. Frames must be popped in reverse order of pushing.
//
// A Stack is not safe for concurrent use.
type Stack struct {
	mem   Memory
	base  Ptr
	limit Ptr
	top   Ptr
	depth int
}

// NewStack creates a stack over [base, base+size) of mem. base must be
// non-null.
func NewStack(mem Memory, base Ptr, size uint32) *Stack {
	return &Stack{mem: mem, base: base, limit: base + Ptr(size), top: base}
}

// Used returns the number of bytes held by open frames.
func (s *Stack) Used() uint32 {
	return uint32(s.top - s.base)
}

// Depth returns the number of open frames.
func (s *Stack) Depth() int {
	return s.depth
}

// Push opens a new frame.
func (s *Stack) Push() *Frame {
	s.depth++
	return &Frame{s: s, mark: s.top, depth: s.depth}
}

// Frame is one level of a Stack. Everything allocated in a frame is freed
// by Pop.
type Frame struct {
	s      *Stack
	mark   Ptr
	depth  int
	popped bool
}

func (f *Frame) check() error {
	if f.popped {
		return errors.Released(errors.PhaseLayout, "stack frame")
	}
	if f.depth != f.s.depth {
		return errors.ContractViolation(errors.PhaseLayout, "stack frame is not the innermost frame")
	}
	return nil
}

// Alloc reserves size bytes aligned to align.
func (f *Frame) Alloc(size, align uint32) (Ptr, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, errors.InvalidInput(errors.PhaseLayout, "alignment must be a power of two")
	}
	s := f.s
	p := (uint32(s.top) + align - 1) &^ (align - 1)
	end := uint64(p) + uint64(size)
	if end > uint64(s.limit) {
		return 0, errors.AllocationFailed(errors.PhaseLayout, size, align)
	}
	s.top = Ptr(end)
	return Ptr(p), nil
}

// Bytes copies b into the frame and returns a view over the copy.
func (f *Frame) Bytes(b []byte) (View, error) {
	p, err := f.Alloc(uint32(len(b)), 1)
	if err != nil {
		return View{}, err
	}
	if len(b) > 0 {
		if err := f.s.mem.Write(uint32(p), b); err != nil {
			return View{}, errors.Wrap(errors.PhaseLayout, errors.KindOutOfBounds, err, "write frame bytes")
		}
	}
	return MakeView(p, uint32(len(b))), nil
}

// String copies s into the frame and returns a byte view over it.
func (f *Frame) String(s string) (View, error) {
	return f.Bytes([]byte(s))
}

// View stores v in the frame and returns the address of the stored struct,
// for functions that take a view by pointer.
func (f *Frame) View(v View) (Ptr, error) {
	p, err := f.Alloc(ViewSize, Align)
	if err != nil {
		return 0, err
	}
	return p, StoreView(f.s.mem, p, v)
}

// StringView copies s into the frame and returns the address of a stored
// view over it.
func (f *Frame) StringView(s string) (Ptr, error) {
	v, err := f.String(s)
	if err != nil {
		return 0, err
	}
	return f.View(v)
}

// Pop frees everything the frame allocated. Popping a frame that is not the
// innermost one is a contract violation; popping twice is a no-op.
func (f *Frame) Pop() error {
	if f.popped {
		return nil
	}
	if f.depth != f.s.depth {
		return errors.ContractViolation(errors.PhaseLayout, "stack frames popped out of order")
	}
	f.s.top = f.mark
	f.s.depth--
	f.popped = true
	return nil
}
