package native

import (
	"bytes"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/contract"
	"github.com/wippyai/wasm-ffi/errors"
)

// Store layout in arena memory, shared with the wasm export:
//
//	store:   entries Ptr | len u32 | cap u32
//	entries: cap slots of contract.Entry, sorted by key
const (
	storeSize    = 3 * abi.WordSize
	offEntries   = 0
	offLen       = 4
	offCap       = 8
	initialSlots = 4
)

type header struct {
	entries uint32
	len     uint32
	cap     uint32
}

func (l *Library) header(store abi.Ptr) (header, error) {
	if store == 0 {
		return header{}, errors.ContractViolation(errors.PhaseContract, "null store")
	}
	b, err := l.mem.Read(uint32(store), storeSize)
	if err != nil {
		return header{}, err
	}
	return header{
		entries: le32(b[offEntries:]),
		len:     le32(b[offLen:]),
		cap:     le32(b[offCap:]),
	}, nil
}

func (l *Library) setHeader(store abi.Ptr, h header) error {
	if err := l.mem.WriteU32(uint32(store)+offEntries, h.entries); err != nil {
		return err
	}
	if err := l.mem.WriteU32(uint32(store)+offLen, h.len); err != nil {
		return err
	}
	return l.mem.WriteU32(uint32(store)+offCap, h.cap)
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func entryAddr(h header, i uint32) abi.Ptr {
	return abi.Ptr(h.entries + i*contract.EntrySize)
}

func (l *Library) entry(h header, i uint32) (contract.Entry, error) {
	return contract.LoadEntry(l.mem, entryAddr(h, i))
}

// find returns the index of the first entry whose key is not less than key,
// and whether that entry's key equals key.
func (l *Library) find(h header, key []byte) (uint32, bool, error) {
	lo, hi := uint32(0), h.len
	for lo < hi {
		mid := (lo + hi) / 2
		e, err := l.entry(h, mid)
		if err != nil {
			return 0, false, err
		}
		k, err := l.mem.Read(uint32(e.Key.Data), e.Key.Len)
		if err != nil {
			return 0, false, err
		}
		if bytes.Compare(k, key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == h.len {
		return lo, false, nil
	}
	e, err := l.entry(h, lo)
	if err != nil {
		return 0, false, err
	}
	k, err := l.mem.Read(uint32(e.Key.Data), e.Key.Len)
	if err != nil {
		return 0, false, err
	}
	return lo, bytes.Equal(k, key), nil
}

// dup copies b into a fresh arena allocation.
func (l *Library) dup(b []byte) (abi.View, error) {
	p, err := l.alloc.Alloc(uint32(len(b)), 1)
	if err != nil {
		return abi.View{}, err
	}
	if err := l.mem.Write(p, b); err != nil {
		return abi.View{}, err
	}
	return abi.MakeView(abi.Ptr(p), uint32(len(b))), nil
}

func (l *Library) free(p abi.Ptr) {
	if p != 0 {
		l.alloc.Free(uint32(p))
	}
}

// read copies a caller view so later allocations cannot invalidate it.
func (l *Library) read(v abi.View) ([]byte, error) {
	return v.Bytes(l.mem)
}

// move shifts n entries from index from to index to within the array.
func (l *Library) move(h header, to, from, n uint32) error {
	if n == 0 {
		return nil
	}
	span := n * contract.EntrySize
	src, err := l.mem.Read(uint32(entryAddr(h, from)), span)
	if err != nil {
		return err
	}
	dst, err := l.mem.Read(uint32(entryAddr(h, to)), span)
	if err != nil {
		return err
	}
	copy(dst, src)
	return nil
}

// freeData frees every key and value of the store.
func (l *Library) freeData(h header) error {
	for i := uint32(0); i < h.len; i++ {
		e, err := l.entry(h, i)
		if err != nil {
			return err
		}
		l.free(e.Key.Data)
		l.free(e.Value.Data)
	}
	return nil
}
