package abi

import (
	"context"

	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/resource"
)

// HostFunc is the Go body of a closure produced by the importing side. It
// receives the closure arguments without the state word.
type HostFunc func(ctx context.Context, args []uint64) (uint64, error)

type hostState struct {
	fn     HostFunc
	onDrop func()
}

// Trampolines lets the Go side produce closures. Every closure it makes
// shares the same two table slots; the state word is a handle selecting the
// Go function.
type Trampolines struct {
	call   FuncRef
	drop   FuncRef
	states *resource.Table[*hostState]
}

// NewTrampolines creates trampolines over the address space's host call and
// host drop slots.
func NewTrampolines(call, drop FuncRef) *Trampolines {
	return &Trampolines{
		call:   call,
		drop:   drop,
		states: resource.NewTable[*hostState](),
	}
}

// Slots returns the host call and host drop function pointers.
func (t *Trampolines) Slots() (call, drop FuncRef) {
	return t.call, t.drop
}

// Make returns a closure calling fn. onDrop, if non-nil, runs when the
// closure's destroy function is invoked.
func (t *Trampolines) Make(fn HostFunc, onDrop func()) (Closure, error) {
	if t.call == 0 || t.drop == 0 {
		return Closure{}, errors.Unsupported(errors.PhaseInvoke, "host closures")
	}
	h, err := t.states.Insert(&hostState{fn: fn, onDrop: onDrop})
	if err != nil {
		return Closure{}, errors.Wrap(errors.PhaseInvoke, errors.KindAllocation, err, "closure state")
	}
	return MakeClosure(t.call, Ptr(h), t.drop), nil
}

// Dispatch runs the host function behind state. It is the body of the host
// call slot.
func (t *Trampolines) Dispatch(ctx context.Context, state Ptr, args []uint64) (uint64, error) {
	st, ok := t.states.Get(resource.Handle(state))
	if !ok {
		return 0, errors.Released(errors.PhaseInvoke, "host closure")
	}
	return st.fn(ctx, args)
}

// Drop destroys the state behind a host closure. It is the body of the host
// drop slot and reports whether state was live.
func (t *Trampolines) Drop(state Ptr) bool {
	st, ok := t.states.Remove(resource.Handle(state))
	if !ok {
		return false
	}
	if st.onDrop != nil {
		st.onDrop()
	}
	return true
}

// Live returns the number of host closures not yet destroyed.
func (t *Trampolines) Live() int {
	return t.states.Len()
}
