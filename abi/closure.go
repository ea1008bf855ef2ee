package abi

import (
	"context"

	wasmffi "github.com/wippyai/wasm-ffi"
	"github.com/wippyai/wasm-ffi/errors"
)

// Caller calls function pointers. The address space's table satisfies it.
type Caller = wasmffi.Table

// Closure is a callable crossing the boundary as plain words: a function
// that takes State as its first argument, the State pointer and a destroy
// function for State.
type Closure struct {
	Call    FuncRef
	State   Ptr
	Destroy FuncRef
}

// MakeClosure binds the three fields without validating them.
func MakeClosure(call FuncRef, state Ptr, destroy FuncRef) Closure {
	return Closure{Call: call, State: state, Destroy: destroy}
}

// Released reports whether the closure has been released or was never bound.
func (c *Closure) Released() bool {
	return c.Call == 0 && c.Destroy == 0
}

// Invoke calls Call(State, args...). A released closure fails without
// reaching the table.
func (c *Closure) Invoke(ctx context.Context, caller Caller, args ...uint64) ([]uint64, error) {
	if c.Call == 0 {
		if c.Destroy == 0 && c.State == 0 {
			return nil, errors.Released(errors.PhaseInvoke, "closure")
		}
		return nil, errors.NullFunction(errors.PhaseInvoke)
	}
	full := make([]uint64, 0, len(args)+1)
	full = append(full, uint64(c.State))
	full = append(full, args...)
	results, err := caller.Call(ctx, uint32(c.Call), full...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseInvoke, errors.KindTrap, err, "closure call")
	}
	return results, nil
}

// Release runs Destroy(State) at most once and clears every field. The
// destroy function runs even when State is null since the state pointer of
// a closure is opaque to the holder.
func (c *Closure) Release(ctx context.Context, d Destroyer) error {
	fn, state := c.Destroy, c.State
	*c = Closure{}
	if fn == 0 {
		return nil
	}
	return d.Destroy(ctx, fn, state)
}

// Take moves ownership out of c.
func (c *Closure) Take() Closure {
	out := *c
	*c = Closure{}
	return out
}
