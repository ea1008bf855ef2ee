package arena

import (
	"encoding/binary"

	"github.com/wippyai/wasm-ffi/errors"
)

// Memory is a Go-owned linear memory that grows in whole pages.
type Memory struct {
	data     []byte
	maxPages uint32
}

// NewMemory creates a memory of initial pages that may grow to max pages.
func NewMemory(initial, max uint32) *Memory {
	return &Memory{
		data:     make([]byte, uint64(initial)*PageSize),
		maxPages: max,
	}
}

// Size returns the current size in bytes.
func (m *Memory) Size() uint32 {
	return uint32(len(m.data))
}

// Pages returns the current size in pages.
func (m *Memory) Pages() uint32 {
	return uint32(len(m.data) / PageSize)
}

// Grow adds delta pages and returns the previous page count.
func (m *Memory) Grow(delta uint32) (uint32, bool) {
	prev := m.Pages()
	if uint64(prev)+uint64(delta) > uint64(m.maxPages) {
		return prev, false
	}
	m.data = append(m.data, make([]byte, uint64(delta)*PageSize)...)
	return prev, true
}

func (m *Memory) span(offset, length uint32) ([]byte, error) {
	end := uint64(offset) + uint64(length)
	if end > uint64(len(m.data)) {
		return nil, errors.MemoryOutOfBounds(errors.PhaseLayout, offset, length)
	}
	return m.data[offset:end], nil
}

// Read returns a slice aliasing memory. It is invalidated by Grow.
func (m *Memory) Read(offset uint32, length uint32) ([]byte, error) {
	return m.span(offset, length)
}

// Write copies data into memory.
func (m *Memory) Write(offset uint32, data []byte) error {
	b, err := m.span(offset, uint32(len(data)))
	if err != nil {
		return err
	}
	copy(b, data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (m *Memory) ReadU8(offset uint32) (uint8, error) {
	b, err := m.span(offset, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (m *Memory) ReadU16(offset uint32) (uint16, error) {
	b, err := m.span(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.span(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (m *Memory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.span(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (m *Memory) WriteU8(offset uint32, value uint8) error {
	b, err := m.span(offset, 1)
	if err != nil {
		return err
	}
	b[0] = value
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (m *Memory) WriteU16(offset uint32, value uint16) error {
	b, err := m.span(offset, 2)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(b, value)
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (m *Memory) WriteU32(offset uint32, value uint32) error {
	b, err := m.span(offset, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(b, value)
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (m *Memory) WriteU64(offset uint32, value uint64) error {
	b, err := m.span(offset, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(b, value)
	return nil
}
