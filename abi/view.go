package abi

import (
	"iter"

	"github.com/wippyai/wasm-ffi/errors"
)

// View is a borrowed array: a pointer to the first element of a contiguous run
// of elements and the element count. A View never owns its memory and is only
// valid while its source is alive. The pointer of an empty view is never read.
type View struct {
	Data Ptr
	Len  uint32
}

// MakeView constructs a view over length elements starting at data.
func MakeView(data Ptr, length uint32) View {
	return View{Data: data, Len: length}
}

// Empty reports whether the view has no elements.
func (v View) Empty() bool {
	return v.Len == 0
}

// At returns the address of element i. The index is not checked unless the
// ffidebug build tag is set, in which case an out-of-range index panics.
func (v View) At(i, elemSize uint32) Ptr {
	if debugChecks && i >= v.Len {
		panic(errors.New(errors.PhaseLayout, errors.KindContractViolation).
			Value(i).
			Detail("view index %d out of range [0, %d)", i, v.Len).
			Build())
	}
	return v.Data + Ptr(i*elemSize)
}

// Index returns the address of element i, or an error when i is out of range.
func (v View) Index(i, elemSize uint32) (Ptr, error) {
	if i >= v.Len {
		return 0, errors.OutOfBounds(errors.PhaseLayout, []string{"view"}, int(i), int(v.Len))
	}
	return v.Data + Ptr(i*elemSize), nil
}

// Bytes copies the bytes a byte view refers to.
func (v View) Bytes(mem Memory) ([]byte, error) {
	if v.Len == 0 {
		return []byte{}, nil
	}
	data, err := mem.Read(uint32(v.Data), v.Len)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLayout, errors.KindOutOfBounds, err, "read byte view")
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// String copies a byte view into a Go string.
func (v View) String(mem Memory) (string, error) {
	b, err := v.Bytes(mem)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Codec loads one element of type T from linear memory.
type Codec[T any] interface {
	Size() uint32
	Load(mem Memory, addr Ptr) (T, error)
}

// Elements yields the elements of v in storage order. The sequence is derived
// only from (data, length), so ranging over it again restarts from the first
// element. Iteration stops after the first load error.
func Elements[T any](mem Memory, v View, codec Codec[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		size := codec.Size()
		for i := uint32(0); i < v.Len; i++ {
			elem, err := codec.Load(mem, v.Data+Ptr(i*size))
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if !yield(elem, nil) {
				return
			}
		}
	}
}

// Collect loads every element of v.
func Collect[T any](mem Memory, v View, codec Codec[T]) ([]T, error) {
	out := make([]T, 0, v.Len)
	for elem, err := range Elements(mem, v, codec) {
		if err != nil {
			return nil, err
		}
		out = append(out, elem)
	}
	return out, nil
}

type u8Codec struct{}

func (u8Codec) Size() uint32 { return 1 }

func (u8Codec) Load(mem Memory, addr Ptr) (byte, error) {
	return mem.ReadU8(uint32(addr))
}

type u32Codec struct{}

func (u32Codec) Size() uint32 { return WordSize }

func (u32Codec) Load(mem Memory, addr Ptr) (uint32, error) {
	return mem.ReadU32(uint32(addr))
}

type viewCodec struct{}

func (viewCodec) Size() uint32 { return ViewSize }

func (viewCodec) Load(mem Memory, addr Ptr) (View, error) {
	return LoadView(mem, addr)
}

// Element codecs for common element types.
var (
	ByteCodec Codec[byte]   = u8Codec{}
	U32Codec  Codec[uint32] = u32Codec{}
	ViewCodec Codec[View]   = viewCodec{}
)
