package contract

import (
	"github.com/wippyai/wasm-ffi/abi"
)

// EntrySize is the size of an Entry: two views.
const EntrySize = 2 * abi.ViewSize

// Entry is one (key, value) pair as laid out in an enumeration or produced by
// a cursor. Both views borrow the store.
type Entry struct {
	Key   abi.View
	Value abi.View
}

// LoadEntry reads an Entry at addr.
func LoadEntry(mem abi.Memory, addr abi.Ptr) (Entry, error) {
	k, err := abi.LoadView(mem, addr)
	if err != nil {
		return Entry{}, err
	}
	v, err := abi.LoadView(mem, addr+abi.ViewSize)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Key: k, Value: v}, nil
}

// StoreEntry writes e at addr.
func StoreEntry(mem abi.Memory, addr abi.Ptr, e Entry) error {
	if err := abi.StoreView(mem, addr, e.Key); err != nil {
		return err
	}
	return abi.StoreView(mem, addr+abi.ViewSize, e.Value)
}

// Strings copies the key and value out of memory.
func (e Entry) Strings(mem abi.Memory) (key, value string, err error) {
	if key, err = e.Key.String(mem); err != nil {
		return "", "", err
	}
	if value, err = e.Value.String(mem); err != nil {
		return "", "", err
	}
	return key, value, nil
}

type entryCodec struct{}

func (entryCodec) Size() uint32 { return EntrySize }

func (entryCodec) Load(mem abi.Memory, addr abi.Ptr) (Entry, error) {
	return LoadEntry(mem, addr)
}

// EntryCodec loads entries from an enumeration view.
var EntryCodec abi.Codec[Entry] = entryCodec{}
