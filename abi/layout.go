package abi

import (
	wasmffi "github.com/wippyai/wasm-ffi"
	"github.com/wippyai/wasm-ffi/errors"
)

// Ptr is a non-owning address in the shared linear address space.
type Ptr uint32

// FuncRef is a function pointer: an index into the address space's table.
// The zero FuncRef is the null function pointer.
type FuncRef uint32

// Memory is the linear memory every primitive is laid out in.
type Memory = wasmffi.Memory

// Fixed layout of the primitives. All fields are machine words.
const (
	WordSize      = 4
	ViewSize      = 2 * WordSize
	OwnedPtrSize  = 2 * WordSize
	OwnedViewSize = ViewSize + WordSize
	ClosureSize   = 3 * WordSize
	Align         = WordSize
)

func loadWords(mem Memory, addr Ptr, n int) ([3]uint32, error) {
	var words [3]uint32
	if addr == 0 {
		return words, errors.ContractViolation(errors.PhaseLayout, "load from null pointer")
	}
	for i := 0; i < n; i++ {
		w, err := mem.ReadU32(uint32(addr) + uint32(i*WordSize))
		if err != nil {
			return words, errors.Wrap(errors.PhaseLayout, errors.KindOutOfBounds, err, "load word")
		}
		words[i] = w
	}
	return words, nil
}

func storeWords(mem Memory, addr Ptr, words ...uint32) error {
	if addr == 0 {
		return errors.ContractViolation(errors.PhaseLayout, "store to null pointer")
	}
	for i, w := range words {
		if err := mem.WriteU32(uint32(addr)+uint32(i*WordSize), w); err != nil {
			return errors.Wrap(errors.PhaseLayout, errors.KindOutOfBounds, err, "store word")
		}
	}
	return nil
}

// LoadView reads a View laid out as (data, length) at addr.
func LoadView(mem Memory, addr Ptr) (View, error) {
	w, err := loadWords(mem, addr, 2)
	if err != nil {
		return View{}, err
	}
	return View{Data: Ptr(w[0]), Len: w[1]}, nil
}

// StoreView writes v at addr as (data, length).
func StoreView(mem Memory, addr Ptr, v View) error {
	return storeWords(mem, addr, uint32(v.Data), v.Len)
}

// LoadOwnedPtr reads a handle laid out as (data, destroy) at addr.
func LoadOwnedPtr(mem Memory, addr Ptr) (OwnedPtr, error) {
	w, err := loadWords(mem, addr, 2)
	if err != nil {
		return OwnedPtr{}, err
	}
	return OwnedPtr{Data: Ptr(w[0]), Destroy: FuncRef(w[1])}, nil
}

// StoreOwnedPtr writes h at addr as (data, destroy).
func StoreOwnedPtr(mem Memory, addr Ptr, h OwnedPtr) error {
	return storeWords(mem, addr, uint32(h.Data), uint32(h.Destroy))
}

// LoadOwnedView reads a handle laid out as (data, length, destroy) at addr.
func LoadOwnedView(mem Memory, addr Ptr) (OwnedView, error) {
	w, err := loadWords(mem, addr, 3)
	if err != nil {
		return OwnedView{}, err
	}
	return OwnedView{View: View{Data: Ptr(w[0]), Len: w[1]}, Destroy: FuncRef(w[2])}, nil
}

// StoreOwnedView writes h at addr as (data, length, destroy).
func StoreOwnedView(mem Memory, addr Ptr, h OwnedView) error {
	return storeWords(mem, addr, uint32(h.View.Data), h.View.Len, uint32(h.Destroy))
}

// LoadClosure reads a closure laid out as (call, state, destroy) at addr.
func LoadClosure(mem Memory, addr Ptr) (Closure, error) {
	w, err := loadWords(mem, addr, 3)
	if err != nil {
		return Closure{}, err
	}
	return Closure{Call: FuncRef(w[0]), State: Ptr(w[1]), Destroy: FuncRef(w[2])}, nil
}

// StoreClosure writes c at addr as (call, state, destroy).
func StoreClosure(mem Memory, addr Ptr, c Closure) error {
	return storeWords(mem, addr, uint32(c.Call), uint32(c.State), uint32(c.Destroy))
}
