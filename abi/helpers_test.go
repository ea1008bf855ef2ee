package abi

import (
	"context"
	"encoding/binary"
	"fmt"
)

type testMemory struct {
	data []byte
}

func newTestMemory(size int) *testMemory {
	return &testMemory{data: make([]byte, size)}
}

func (m *testMemory) bounds(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.data)) {
		return fmt.Errorf("memory read out of bounds: offset=%d, length=%d", offset, length)
	}
	return nil
}

func (m *testMemory) Read(offset, length uint32) ([]byte, error) {
	if err := m.bounds(offset, length); err != nil {
		return nil, err
	}
	return m.data[offset : offset+length], nil
}

func (m *testMemory) Write(offset uint32, data []byte) error {
	if err := m.bounds(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	return nil
}

func (m *testMemory) ReadU8(offset uint32) (uint8, error) {
	if err := m.bounds(offset, 1); err != nil {
		return 0, err
	}
	return m.data[offset], nil
}

func (m *testMemory) ReadU16(offset uint32) (uint16, error) {
	b, err := m.Read(offset, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (m *testMemory) ReadU32(offset uint32) (uint32, error) {
	b, err := m.Read(offset, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (m *testMemory) ReadU64(offset uint32) (uint64, error) {
	b, err := m.Read(offset, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (m *testMemory) WriteU8(offset uint32, v uint8) error {
	return m.Write(offset, []byte{v})
}

func (m *testMemory) WriteU16(offset uint32, v uint16) error {
	return m.Write(offset, binary.LittleEndian.AppendUint16(nil, v))
}

func (m *testMemory) WriteU32(offset uint32, v uint32) error {
	return m.Write(offset, binary.LittleEndian.AppendUint32(nil, v))
}

func (m *testMemory) WriteU64(offset uint32, v uint64) error {
	return m.Write(offset, binary.LittleEndian.AppendUint64(nil, v))
}

// testTable records every call and dispatches to registered functions.
type testTable struct {
	funcs map[uint32]func(args []uint64) uint64
	calls []tableCall
}

type tableCall struct {
	fn   uint32
	args []uint64
}

func newTestTable() *testTable {
	return &testTable{funcs: make(map[uint32]func([]uint64) uint64)}
}

func (t *testTable) Call(_ context.Context, fn uint32, args ...uint64) ([]uint64, error) {
	t.calls = append(t.calls, tableCall{fn: fn, args: append([]uint64(nil), args...)})
	f, ok := t.funcs[fn]
	if !ok {
		return nil, fmt.Errorf("no function at %d", fn)
	}
	return []uint64{f(args)}, nil
}

func (t *testTable) callsTo(fn uint32) int {
	n := 0
	for _, c := range t.calls {
		if c.fn == fn {
			n++
		}
	}
	return n
}

// countingDestroyer counts destroy calls per pointer.
type countingDestroyer struct {
	calls map[Ptr]int
	fns   []FuncRef
}

func newCountingDestroyer() *countingDestroyer {
	return &countingDestroyer{calls: make(map[Ptr]int)}
}

func (d *countingDestroyer) Destroy(_ context.Context, fn FuncRef, ptr Ptr) error {
	d.calls[ptr]++
	d.fns = append(d.fns, fn)
	return nil
}
