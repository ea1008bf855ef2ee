package abi

import (
	"context"

	wasmffi "github.com/wippyai/wasm-ffi"
	"github.com/wippyai/wasm-ffi/errors"
)

// Destroyer invokes a destroy function pointer on a payload pointer.
type Destroyer interface {
	Destroy(ctx context.Context, fn FuncRef, ptr Ptr) error
}

// DestroyerFunc adapts a function to the Destroyer interface.
type DestroyerFunc func(ctx context.Context, fn FuncRef, ptr Ptr) error

func (f DestroyerFunc) Destroy(ctx context.Context, fn FuncRef, ptr Ptr) error {
	return f(ctx, fn, ptr)
}

type tableDestroyer struct {
	table wasmffi.Table
}

// Destructors returns a Destroyer that calls destroy functions through table.
func Destructors(table wasmffi.Table) Destroyer {
	return tableDestroyer{table: table}
}

func (d tableDestroyer) Destroy(ctx context.Context, fn FuncRef, ptr Ptr) error {
	if fn == 0 {
		return errors.NullFunction(errors.PhaseRelease)
	}
	if _, err := d.table.Call(ctx, uint32(fn), uint64(ptr)); err != nil {
		return errors.Wrap(errors.PhaseRelease, errors.KindTrap, err, "destroy")
	}
	return nil
}

// OwnedPtr is an owning handle over a single pointer. Destroy is the function
// that frees Data; a null Destroy means the holder never owns the payload.
type OwnedPtr struct {
	Data    Ptr
	Destroy FuncRef
}

// Wrap builds a handle around ptr. A null destroy yields a non-owning handle.
func Wrap(ptr Ptr, destroy FuncRef) OwnedPtr {
	return OwnedPtr{Data: ptr, Destroy: destroy}
}

// Released reports whether the handle no longer owns anything.
func (h *OwnedPtr) Released() bool {
	return h.Destroy == 0
}

// Release runs destroy(Data) once and resets the handle. Calling it again, or
// on a handle with a null destroy, does nothing. The handle is reset even if
// destroy fails, so a failing destructor is never retried.
func (h *OwnedPtr) Release(ctx context.Context, d Destroyer) error {
	if h.Destroy == 0 {
		return nil
	}
	fn, ptr := h.Destroy, h.Data
	h.Data, h.Destroy = 0, 0
	if ptr == 0 {
		return nil
	}
	return d.Destroy(ctx, fn, ptr)
}

// Take moves ownership out of h. The returned handle owns the payload and h
// is left released.
func (h *OwnedPtr) Take() OwnedPtr {
	out := *h
	*h = OwnedPtr{}
	return out
}

// OwnedView is an owning handle over a view payload. Destroy frees the
// storage the view's data points to.
type OwnedView struct {
	View    View
	Destroy FuncRef
}

// WrapView builds a handle around v. A null destroy yields a non-owning handle.
func WrapView(v View, destroy FuncRef) OwnedView {
	return OwnedView{View: v, Destroy: destroy}
}

// Released reports whether the handle no longer owns anything.
func (h *OwnedView) Released() bool {
	return h.Destroy == 0
}

// Release runs destroy(View.Data) once and resets the handle.
func (h *OwnedView) Release(ctx context.Context, d Destroyer) error {
	if h.Destroy == 0 {
		return nil
	}
	fn, ptr := h.Destroy, h.View.Data
	h.View, h.Destroy = View{}, 0
	if ptr == 0 {
		return nil
	}
	return d.Destroy(ctx, fn, ptr)
}

// Take moves ownership out of h.
func (h *OwnedView) Take() OwnedView {
	out := *h
	*h = OwnedView{}
	return out
}
