package native

import (
	"context"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/arena"
	"github.com/wippyai/wasm-ffi/contract"
	"github.com/wippyai/wasm-ffi/errors"
)

// Name identifies this implementation in the conformance matrix.
const Name = "native"

// Library is the key-value contract implemented in Go on a native address
// space. Its data lives in arena memory with the same layout the wasm export
// uses, and its destroy and cursor functions sit in the arena's table.
type Library struct {
	space *arena.Space
	mem   *arena.Memory
	alloc *arena.Allocator

	destroyStore   abi.FuncRef
	destroyEntries abi.FuncRef
	cursorNext     abi.FuncRef
	cursorDrop     abi.FuncRef
}

// Open creates a fresh address space and loads the implementation into it.
func Open(cfg arena.Config) (*Library, error) {
	space, err := arena.New(cfg)
	if err != nil {
		return nil, err
	}
	l := &Library{
		space: space,
		mem:   space.Arena(),
		alloc: space.Allocator(),
	}
	funcs := space.Funcs()
	l.destroyStore = funcs.Register(l.destroyStoreFunc)
	l.destroyEntries = funcs.Register(func(_ context.Context, args []uint64) (uint64, error) {
		l.free(abi.Ptr(args[0]))
		return 0, nil
	})
	l.cursorNext = funcs.Register(l.cursorNextFunc)
	l.cursorDrop = funcs.Register(func(_ context.Context, args []uint64) (uint64, error) {
		l.free(abi.Ptr(args[0]))
		return 0, nil
	})
	return l, nil
}

func (l *Library) Name() string                { return Name }
func (l *Library) Space() abi.Space            { return l.space }
func (l *Library) Supports(symbol string) bool { return true }

func (l *Library) Create(_ context.Context) (abi.OwnedPtr, error) {
	p, err := l.alloc.Alloc(storeSize, abi.Align)
	if err != nil {
		return abi.OwnedPtr{}, err
	}
	if err := l.setHeader(abi.Ptr(p), header{}); err != nil {
		return abi.OwnedPtr{}, err
	}
	return abi.Wrap(abi.Ptr(p), l.destroyStore), nil
}

func (l *Library) destroyStoreFunc(_ context.Context, args []uint64) (uint64, error) {
	store := abi.Ptr(args[0])
	if store == 0 {
		return 0, nil
	}
	h, err := l.header(store)
	if err != nil {
		return 0, err
	}
	if err := l.freeData(h); err != nil {
		return 0, err
	}
	l.free(abi.Ptr(h.entries))
	l.free(store)
	return 0, nil
}

func (l *Library) Insert(_ context.Context, store abi.Ptr, key, value abi.View) error {
	k, err := l.read(key)
	if err != nil {
		return err
	}
	v, err := l.read(value)
	if err != nil {
		return err
	}
	h, err := l.header(store)
	if err != nil {
		return err
	}
	idx, found, err := l.find(h, k)
	if err != nil {
		return err
	}

	if found {
		e, err := l.entry(h, idx)
		if err != nil {
			return err
		}
		nv, err := l.dup(v)
		if err != nil {
			return err
		}
		l.free(e.Value.Data)
		e.Value = nv
		return contract.StoreEntry(l.mem, entryAddr(h, idx), e)
	}

	if h.len == h.cap {
		newCap := h.cap * 2
		if newCap == 0 {
			newCap = initialSlots
		}
		p, err := l.alloc.Alloc(newCap*contract.EntrySize, abi.Align)
		if err != nil {
			return err
		}
		if h.len > 0 {
			old, err := l.mem.Read(h.entries, h.len*contract.EntrySize)
			if err != nil {
				return err
			}
			if err := l.mem.Write(p, old); err != nil {
				return err
			}
		}
		l.free(abi.Ptr(h.entries))
		h.entries, h.cap = p, newCap
	}

	if err := l.move(h, idx+1, idx, h.len-idx); err != nil {
		return err
	}
	kv, err := l.dup(k)
	if err != nil {
		return err
	}
	vv, err := l.dup(v)
	if err != nil {
		return err
	}
	if err := contract.StoreEntry(l.mem, entryAddr(h, idx), contract.Entry{Key: kv, Value: vv}); err != nil {
		return err
	}
	h.len++
	return l.setHeader(store, h)
}

func (l *Library) Delete(_ context.Context, store abi.Ptr, key abi.View) error {
	k, err := l.read(key)
	if err != nil {
		return err
	}
	h, err := l.header(store)
	if err != nil {
		return err
	}
	idx, found, err := l.find(h, k)
	if err != nil || !found {
		return err
	}
	e, err := l.entry(h, idx)
	if err != nil {
		return err
	}
	l.free(e.Key.Data)
	l.free(e.Value.Data)
	if err := l.move(h, idx, idx+1, h.len-idx-1); err != nil {
		return err
	}
	h.len--
	return l.setHeader(store, h)
}

func (l *Library) Size(_ context.Context, store abi.Ptr) (uint32, error) {
	h, err := l.header(store)
	if err != nil {
		return 0, err
	}
	return h.len, nil
}

func (l *Library) Lookup(_ context.Context, store abi.Ptr, key abi.View) (abi.View, bool, error) {
	k, err := l.read(key)
	if err != nil {
		return abi.View{}, false, err
	}
	h, err := l.header(store)
	if err != nil {
		return abi.View{}, false, err
	}
	idx, found, err := l.find(h, k)
	if err != nil || !found {
		return abi.View{}, false, err
	}
	e, err := l.entry(h, idx)
	if err != nil {
		return abi.View{}, false, err
	}
	return e.Value, true, nil
}

func (l *Library) Enumerate(_ context.Context, store abi.Ptr) (abi.OwnedView, error) {
	h, err := l.header(store)
	if err != nil {
		return abi.OwnedView{}, err
	}
	size := h.len * contract.EntrySize
	p, err := l.alloc.Alloc(size, abi.Align)
	if err != nil {
		return abi.OwnedView{}, err
	}
	if size > 0 {
		src, err := l.mem.Read(h.entries, size)
		if err != nil {
			return abi.OwnedView{}, err
		}
		if err := l.mem.Write(p, src); err != nil {
			return abi.OwnedView{}, err
		}
	}
	return abi.WrapView(abi.MakeView(abi.Ptr(p), h.len), l.destroyEntries), nil
}

func (l *Library) Clear(_ context.Context, store abi.Ptr) error {
	h, err := l.header(store)
	if err != nil {
		return err
	}
	if err := l.freeData(h); err != nil {
		return err
	}
	h.len = 0
	return l.setHeader(store, h)
}

func (l *Library) ForEach(ctx context.Context, store abi.Ptr, visitor abi.Closure) error {
	table := l.space.Table()
	defer visitor.Release(ctx, abi.Destructors(table))

	h, err := l.header(store)
	if err != nil {
		return err
	}
	for i := uint32(0); i < h.len; i++ {
		e := entryAddr(h, i)
		res, err := visitor.Invoke(ctx, table, uint64(e), uint64(e+abi.ViewSize))
		if err != nil {
			return err
		}
		if len(res) == 0 || uint32(res[0]) == 0 {
			break
		}
	}
	return nil
}

// cursor state: store Ptr | next index u32
const cursorStateSize = 2 * abi.WordSize

func (l *Library) Cursor(_ context.Context, store abi.Ptr) (abi.Closure, error) {
	if _, err := l.header(store); err != nil {
		return abi.Closure{}, err
	}
	st, err := l.alloc.Alloc(cursorStateSize, abi.Align)
	if err != nil {
		return abi.Closure{}, err
	}
	if err := l.mem.WriteU32(st, uint32(store)); err != nil {
		return abi.Closure{}, err
	}
	if err := l.mem.WriteU32(st+4, 0); err != nil {
		return abi.Closure{}, err
	}
	return abi.MakeClosure(l.cursorNext, abi.Ptr(st), l.cursorDrop), nil
}

func (l *Library) cursorNextFunc(_ context.Context, args []uint64) (uint64, error) {
	if len(args) < 2 {
		return 0, errors.InvalidInput(errors.PhaseInvoke, "cursor next takes (state, out)")
	}
	st, out := uint32(args[0]), abi.Ptr(args[1])
	store, err := l.mem.ReadU32(st)
	if err != nil {
		return 0, err
	}
	idx, err := l.mem.ReadU32(st + 4)
	if err != nil {
		return 0, err
	}
	h, err := l.header(abi.Ptr(store))
	if err != nil {
		return 0, err
	}
	if idx >= h.len {
		return 0, nil
	}
	e, err := l.entry(h, idx)
	if err != nil {
		return 0, err
	}
	if err := contract.StoreEntry(l.mem, out, e); err != nil {
		return 0, err
	}
	return 1, l.mem.WriteU32(st+4, idx+1)
}

func (l *Library) Live(_ context.Context) (int, error) {
	return l.alloc.Live(), nil
}

func (l *Library) Close(_ context.Context) error {
	return nil
}

var _ contract.Library = (*Library)(nil)
