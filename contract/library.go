package contract

import (
	"context"

	"github.com/wippyai/wasm-ffi/abi"
)

// Exported symbol names of the key-value contract.
const (
	SymCreate    = "create"
	SymInsert    = "insert"
	SymDelete    = "delete"
	SymSize      = "size"
	SymLookup    = "lookup"
	SymEnumerate = "enumerate"
	SymClear     = "clear"
	SymForEach   = "for_each"
	SymCursor    = "cursor"
)

// Required lists the symbols every export implementation provides. The
// remaining symbols are optional.
var Required = []string{SymCreate, SymInsert, SymDelete, SymSize, SymLookup, SymEnumerate}

// Library is one export implementation of the key-value contract, loaded
// into an address space. Keys and values are byte views into that space;
// callers usually stage them on the space's caller stack.
//
// The store is ordered by bytewise key comparison. Insert overwrites the
// value of an existing key. Deleting an absent key does nothing. Views
// returned by Lookup and Enumerate borrow the store and stay valid until the
// next mutation or the store's release.
//
// A Library is not safe for concurrent use.
type Library interface {
	// Name identifies the implementation.
	Name() string

	// Space returns the address space the implementation lives in.
	Space() abi.Space

	// Supports reports whether an optional symbol is implemented.
	Supports(symbol string) bool

	// Create returns an owning handle to a new, empty store.
	Create(ctx context.Context) (abi.OwnedPtr, error)

	// Insert copies key and value into the store.
	Insert(ctx context.Context, store abi.Ptr, key, value abi.View) error

	// Delete removes key if present.
	Delete(ctx context.Context, store abi.Ptr, key abi.View) error

	// Size returns the number of entries.
	Size(ctx context.Context, store abi.Ptr) (uint32, error)

	// Lookup returns a borrowed view of the value stored under key.
	Lookup(ctx context.Context, store abi.Ptr, key abi.View) (abi.View, bool, error)

	// Enumerate returns an owning handle over a view of Entry values in key
	// order. Releasing it frees the array, not the entries' data.
	Enumerate(ctx context.Context, store abi.Ptr) (abi.OwnedView, error)

	// Clear removes every entry.
	Clear(ctx context.Context, store abi.Ptr) error

	// ForEach calls visitor(state, key*, value*) for each entry in key order
	// until it returns 0. The visitor is consumed: its destroy function runs
	// before ForEach returns.
	ForEach(ctx context.Context, store abi.Ptr, visitor abi.Closure) error

	// Cursor returns a producer closure next(state, out*) that writes the
	// next Entry to out and returns 1, or returns 0 once exhausted.
	Cursor(ctx context.Context, store abi.Ptr) (abi.Closure, error)

	// Live returns the number of allocations the implementation holds.
	Live(ctx context.Context) (int, error)

	// Close unloads the implementation.
	Close(ctx context.Context) error
}

// Next advances a cursor closure, writing into a scratch entry on the
// space's caller stack.
func Next(ctx context.Context, space abi.Space, cursor *abi.Closure) (Entry, bool, error) {
	frame := space.Stack().Push()
	defer frame.Pop()

	out, err := frame.Alloc(EntrySize, abi.Align)
	if err != nil {
		return Entry{}, false, err
	}
	res, err := cursor.Invoke(ctx, space.Table(), uint64(out))
	if err != nil {
		return Entry{}, false, err
	}
	if len(res) == 0 || uint32(res[0]) == 0 {
		return Entry{}, false, nil
	}
	e, err := LoadEntry(space.Memory(), out)
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}
