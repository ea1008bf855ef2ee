package wasmffi

import "context"

// Memory is a 32-bit linear address space shared by every component loaded into it.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer provides the current size of linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}

// Allocator allocates memory in linear memory on behalf of one component.
// Memory returned by one component's allocator is only ever freed by it.
type Allocator interface {
	Alloc(size, align uint32) (uint32, error)
	Free(ptr uint32)
}

// Table calls function pointers. A function pointer is an index into the
// address space's function table; index 0 is the null function.
type Table interface {
	Call(ctx context.Context, fn uint32, args ...uint64) ([]uint64, error)
}
