package arena

import (
	"context"
	"sync"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/errors"
)

// Func is a Go function living at a table index. It receives the call's
// arguments as words and returns at most one word.
type Func func(ctx context.Context, args []uint64) (uint64, error)

// Table holds the Go functions function pointers index. Index 0 is the null
// function and is never assigned.
type Table struct {
	mu    sync.RWMutex
	funcs []Func
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{funcs: []Func{nil}}
}

// Register places fn at the next free index and returns its function pointer.
func (t *Table) Register(fn Func) abi.FuncRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.funcs = append(t.funcs, fn)
	return abi.FuncRef(len(t.funcs) - 1)
}

// Len returns the number of slots including the null slot.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.funcs)
}

// Call invokes the function at index fn.
func (t *Table) Call(ctx context.Context, fn uint32, args ...uint64) ([]uint64, error) {
	if fn == 0 {
		return nil, errors.NullFunction(errors.PhaseInvoke)
	}
	t.mu.RLock()
	if int(fn) >= len(t.funcs) {
		t.mu.RUnlock()
		return nil, errors.UnknownFunction(errors.PhaseInvoke, fn)
	}
	f := t.funcs[fn]
	t.mu.RUnlock()

	res, err := f(ctx, args)
	if err != nil {
		return nil, err
	}
	return []uint64{res}, nil
}
