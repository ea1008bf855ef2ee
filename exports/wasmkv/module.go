package wasmkv

import (
	"sync"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/contract"
	"github.com/wippyai/wasm-ffi/wasmgen"
	"github.com/wippyai/wasm-ffi/wasmhost"
)

// Memory layout of the generated module.
//
//	[0, 16)                null guard
//	[16, HeapBase)         caller scratch region
//	[HeapBase, ...)        heap, bump allocated
const (
	ScratchBase = 16
	ScratchSize = 32 << 10
	HeapBase    = ScratchBase + ScratchSize
	MaxPages    = 4096

	// allocation header: magic u32 | size u32
	headerSize = 8
	magic      = 0x6b766c61

	storeSize   = 3 * abi.WordSize
	offEntries  = 0
	offLen      = 4
	offCap      = 8
	initialCap  = 4
	entryShift  = 4 // log2(contract.EntrySize)
	cursorState = 2 * abi.WordSize
)

// Table slots, in Elem order.
const (
	SlotDestroyStore   = 1
	SlotDestroyEntries = 2
	SlotCursorNext     = 3
	SlotCursorDrop     = 4
	SlotHostCall       = 5
	SlotHostDrop       = 6
)

var (
	i32    = wasmgen.I32
	none   []wasmgen.ValType
	one    = []wasmgen.ValType{i32}
	two    = []wasmgen.ValType{i32, i32}
	three  = []wasmgen.ValType{i32, i32, i32}
	four   = []wasmgen.ValType{i32, i32, i32, i32}
	result = []wasmgen.ValType{i32}
)

var module = sync.OnceValues(Generate)

// Module returns the encoded module. It is generated once per process.
func Module() ([]byte, error) {
	return module()
}

type gen struct {
	m *wasmgen.Module

	heap, live uint32

	alloc, free, keyCmp, find, found, dup, freeData *wasmgen.Func

	destroyStore, cursorNext *wasmgen.Func

	destroyType, nextType, visitType uint32
}

// Generate assembles the key-value store as a wasm32 module.
func Generate() ([]byte, error) {
	g := &gen{m: wasmgen.NewModule()}
	m := g.m

	hostCall, err := m.ImportFunc(wasmhost.HostModule, "closure_call", three, result)
	if err != nil {
		return nil, err
	}
	hostDrop, err := m.ImportFunc(wasmhost.HostModule, "closure_drop", one, none)
	if err != nil {
		return nil, err
	}

	g.destroyType = m.Type(one, none)
	g.nextType = m.Type(two, result)
	g.visitType = m.Type(three, result)

	g.alloc = m.Func("alloc", one, result)
	g.free = m.Func("free", one, none)
	g.keyCmp = m.Func("key_cmp", four, result)
	g.find = m.Func("find", three, result)
	g.found = m.Func("found", four, result)
	g.dup = m.Func("dup", two, result)
	g.freeData = m.Func("free_data", one, none)
	g.destroyStore = m.Func("destroy_store", one, none)
	g.cursorNext = m.Func("cursor_next", two, result)

	// free doubles as the destructor of entry arrays and cursor states.
	m.Elem(g.destroyStore.Index())
	m.Elem(g.free.Index())
	m.Elem(g.cursorNext.Index())
	m.Elem(g.free.Index())
	m.Elem(hostCall)
	m.Elem(hostDrop)

	m.Memory(1, MaxPages)
	m.ExportMemory(wasmhost.ExportMemory)

	g.heap = m.Global(true, HeapBase)
	g.live = m.Global(true, 0)
	m.ExportGlobal(wasmhost.GlobalLive, g.live)
	m.ExportGlobal(wasmhost.GlobalScratchBase, m.Global(false, ScratchBase))
	m.ExportGlobal(wasmhost.GlobalScratchSize, m.Global(false, ScratchSize))
	m.ExportGlobal(wasmhost.GlobalHostCall, m.Global(false, SlotHostCall))
	m.ExportGlobal(wasmhost.GlobalHostDrop, m.Global(false, SlotHostDrop))

	g.genAlloc()
	g.genFree()
	g.genKeyCmp()
	g.genFind()
	g.genFound()
	g.genDup()
	g.genFreeData()
	g.genDestroyStore()
	g.genCursorNext()

	g.genCreate()
	g.genInsert()
	g.genDelete()
	g.genSize()
	g.genLookup()
	g.genEnumerate()
	g.genClear()
	g.genForEach()
	g.genCursor()
	g.genDispatchers()

	return m.Encode()
}

// entry leaves the address of entry idx of store on the stack.
func entry(c *wasmgen.Code, store, idx uint32) *wasmgen.Code {
	return c.LocalGet(store).I32Load(offEntries).
		LocalGet(idx).I32Const(entryShift).I32Shl().
		I32Add()
}

// loadView reads the (data, len) view at the address in local v into the
// locals data and length.
func loadView(c *wasmgen.Code, v, data, length uint32) *wasmgen.Code {
	return c.LocalGet(v).I32Load(0).LocalSet(data).
		LocalGet(v).I32Load(4).LocalSet(length)
}

// alloc(size) -> ptr. Never returns 0; traps when memory cannot grow.
func (g *gen) genAlloc() {
	f := g.alloc
	p := f.Local(i32)
	end := f.Local(i32)
	f.Body.
		GlobalGet(g.heap).LocalSet(p).
		LocalGet(p).
		LocalGet(0).I32Const(headerSize + 7).I32Add().I32Const(-8).I32And().
		I32Add().LocalSet(end).
		LocalGet(end).LocalGet(p).I32LeU().
		If().Unreachable().End().
		LocalGet(end).MemorySize().I32Const(16).I32Shl().I32GtU().
		If().
		LocalGet(end).MemorySize().I32Const(16).I32Shl().I32Sub().
		I32Const(0xffff).I32Add().I32Const(16).I32ShrU().
		MemoryGrow().I32Const(-1).I32Eq().
		If().Unreachable().End().
		End().
		LocalGet(p).I32Const(magic).I32Store(0).
		LocalGet(p).LocalGet(0).I32Store(4).
		LocalGet(end).GlobalSet(g.heap).
		GlobalGet(g.live).I32Const(1).I32Add().GlobalSet(g.live).
		LocalGet(p).I32Const(headerSize).I32Add()
}

// free(ptr). Null is ignored; anything that is not a live allocation traps.
func (g *gen) genFree() {
	f := g.free
	f.Body.
		LocalGet(0).I32Eqz().
		If().Return().End().
		LocalGet(0).I32Const(headerSize).I32Sub().I32Load(0).I32Const(magic).I32Ne().
		If().Unreachable().End().
		LocalGet(0).I32Const(headerSize).I32Sub().I32Const(0).I32Store(0).
		GlobalGet(g.live).I32Const(1).I32Sub().GlobalSet(g.live)
}

// key_cmp(a, alen, b, blen) -> -1, 0 or 1, bytewise.
func (g *gen) genKeyCmp() {
	f := g.keyCmp
	n := f.Local(i32)
	i := f.Local(i32)
	a := f.Local(i32)
	b := f.Local(i32)
	f.Body.
		LocalGet(1).LocalGet(3).LocalGet(1).LocalGet(3).I32LtU().Select().LocalSet(n).
		Block().
		Loop().
		LocalGet(i).LocalGet(n).I32GeU().BrIf(1).
		LocalGet(0).LocalGet(i).I32Add().I32Load8U(0).LocalSet(a).
		LocalGet(2).LocalGet(i).I32Add().I32Load8U(0).LocalSet(b).
		LocalGet(a).LocalGet(b).I32Ne().
		If().
		I32Const(-1).I32Const(1).LocalGet(a).LocalGet(b).I32LtU().Select().Return().
		End().
		LocalGet(i).I32Const(1).I32Add().LocalSet(i).
		Br(0).
		End().
		End().
		LocalGet(1).LocalGet(3).I32LtU().
		If().I32Const(-1).Return().End().
		LocalGet(1).LocalGet(3).I32GtU()
}

// find(store, key, klen) -> index of the first entry not less than key.
func (g *gen) genFind() {
	f := g.find
	lo := f.Local(i32)
	hi := f.Local(i32)
	mid := f.Local(i32)
	e := f.Local(i32)
	c := f.Body
	c.LocalGet(0).I32Load(offLen).LocalSet(hi).
		Block().
		Loop().
		LocalGet(lo).LocalGet(hi).I32GeU().BrIf(1).
		LocalGet(lo).LocalGet(hi).I32Add().I32Const(1).I32ShrU().LocalSet(mid)
	entry(c, 0, mid).LocalSet(e).
		LocalGet(e).I32Load(0).LocalGet(e).I32Load(4).
		LocalGet(1).LocalGet(2).
		Call(g.keyCmp.Index()).I32Const(0).I32LtS().
		If().
		LocalGet(mid).I32Const(1).I32Add().LocalSet(lo).
		Else().
		LocalGet(mid).LocalSet(hi).
		End().
		Br(0).
		End().
		End().
		LocalGet(lo)
}

// found(store, idx, key, klen) -> whether entry idx holds key.
func (g *gen) genFound() {
	f := g.found
	e := f.Local(i32)
	c := f.Body
	c.LocalGet(1).LocalGet(0).I32Load(offLen).I32GeU().
		If().I32Const(0).Return().End()
	entry(c, 0, 1).LocalSet(e).
		LocalGet(e).I32Load(0).LocalGet(e).I32Load(4).
		LocalGet(2).LocalGet(3).
		Call(g.keyCmp.Index()).I32Eqz()
}

// dup(src, len) -> fresh copy.
func (g *gen) genDup() {
	f := g.dup
	p := f.Local(i32)
	f.Body.
		LocalGet(1).Call(g.alloc.Index()).LocalSet(p).
		LocalGet(p).LocalGet(0).LocalGet(1).MemoryCopy().
		LocalGet(p)
}

// free_data(store) frees every key and value.
func (g *gen) genFreeData() {
	f := g.freeData
	i := f.Local(i32)
	e := f.Local(i32)
	n := f.Local(i32)
	c := f.Body
	c.LocalGet(0).I32Load(offLen).LocalSet(n).
		Block().
		Loop().
		LocalGet(i).LocalGet(n).I32GeU().BrIf(1)
	entry(c, 0, i).LocalSet(e).
		LocalGet(e).I32Load(0).Call(g.free.Index()).
		LocalGet(e).I32Load(8).Call(g.free.Index()).
		LocalGet(i).I32Const(1).I32Add().LocalSet(i).
		Br(0).
		End().
		End()
}

func (g *gen) genDestroyStore() {
	f := g.destroyStore
	f.Body.
		LocalGet(0).I32Eqz().
		If().Return().End().
		LocalGet(0).Call(g.freeData.Index()).
		LocalGet(0).I32Load(offEntries).Call(g.free.Index()).
		LocalGet(0).Call(g.free.Index())
}

// cursor_next(state, out) -> 1 with the next entry copied to out, or 0.
func (g *gen) genCursorNext() {
	f := g.cursorNext
	store := f.Local(i32)
	idx := f.Local(i32)
	c := f.Body
	c.LocalGet(0).I32Load(0).LocalSet(store).
		LocalGet(0).I32Load(4).LocalSet(idx).
		LocalGet(idx).LocalGet(store).I32Load(offLen).I32GeU().
		If().I32Const(0).Return().End().
		LocalGet(1)
	entry(c, store, idx).
		I32Const(contract.EntrySize).MemoryCopy().
		LocalGet(0).LocalGet(idx).I32Const(1).I32Add().I32Store(4).
		I32Const(1)
}

// create(ret): ret <- OwnedPtr{store, destroy_store}
func (g *gen) genCreate() {
	f := g.m.Func(contract.SymCreate, one, none)
	p := f.Local(i32)
	f.Body.
		I32Const(storeSize).Call(g.alloc.Index()).LocalSet(p).
		LocalGet(p).I32Const(0).I32Const(storeSize).MemoryFill().
		LocalGet(0).LocalGet(p).I32Store(0).
		LocalGet(0).I32Const(SlotDestroyStore).I32Store(4)
	g.m.ExportFunc(contract.SymCreate, f.Index())
}

// insert(store, key*, value*)
func (g *gen) genInsert() {
	f := g.m.Func(contract.SymInsert, three, none)
	kp := f.Local(i32)
	kl := f.Local(i32)
	vp := f.Local(i32)
	vl := f.Local(i32)
	idx := f.Local(i32)
	e := f.Local(i32)
	n := f.Local(i32)
	arr := f.Local(i32)
	capacity := f.Local(i32)

	c := f.Body
	loadView(c, 1, kp, kl)
	loadView(c, 2, vp, vl).
		LocalGet(0).LocalGet(kp).LocalGet(kl).Call(g.find.Index()).LocalSet(idx).
		LocalGet(0).LocalGet(idx).LocalGet(kp).LocalGet(kl).Call(g.found.Index()).
		If()
	// Existing key: copy the new value before freeing the old one.
	entry(c, 0, idx).LocalSet(e).
		LocalGet(vp).LocalGet(vl).Call(g.dup.Index()).LocalSet(n).
		LocalGet(e).I32Load(8).Call(g.free.Index()).
		LocalGet(e).LocalGet(n).I32Store(8).
		LocalGet(e).LocalGet(vl).I32Store(12).
		Return().
		End()

	c.LocalGet(0).I32Load(offLen).LocalSet(n).
		LocalGet(0).I32Load(offCap).LocalSet(capacity).
		LocalGet(n).LocalGet(capacity).I32Eq().
		If().
		LocalGet(capacity).I32Const(1).I32Shl().I32Const(initialCap).LocalGet(capacity).Select().LocalSet(capacity).
		LocalGet(capacity).I32Const(entryShift).I32Shl().Call(g.alloc.Index()).LocalSet(arr).
		LocalGet(arr).LocalGet(0).I32Load(offEntries).LocalGet(n).I32Const(entryShift).I32Shl().MemoryCopy().
		LocalGet(0).I32Load(offEntries).Call(g.free.Index()).
		LocalGet(0).LocalGet(arr).I32Store(offEntries).
		LocalGet(0).LocalGet(capacity).I32Store(offCap).
		End()

	entry(c, 0, idx).LocalSet(e).
		LocalGet(e).I32Const(contract.EntrySize).I32Add().
		LocalGet(e).
		LocalGet(n).LocalGet(idx).I32Sub().I32Const(entryShift).I32Shl().
		MemoryCopy().
		LocalGet(e).LocalGet(kp).LocalGet(kl).Call(g.dup.Index()).I32Store(0).
		LocalGet(e).LocalGet(kl).I32Store(4).
		LocalGet(e).LocalGet(vp).LocalGet(vl).Call(g.dup.Index()).I32Store(8).
		LocalGet(e).LocalGet(vl).I32Store(12).
		LocalGet(0).LocalGet(n).I32Const(1).I32Add().I32Store(offLen)
	g.m.ExportFunc(contract.SymInsert, f.Index())
}

// delete(store, key*)
func (g *gen) genDelete() {
	f := g.m.Func(contract.SymDelete, two, none)
	kp := f.Local(i32)
	kl := f.Local(i32)
	idx := f.Local(i32)
	e := f.Local(i32)
	n := f.Local(i32)

	c := f.Body
	loadView(c, 1, kp, kl).
		LocalGet(0).LocalGet(kp).LocalGet(kl).Call(g.find.Index()).LocalSet(idx).
		LocalGet(0).LocalGet(idx).LocalGet(kp).LocalGet(kl).Call(g.found.Index()).I32Eqz().
		If().Return().End()
	entry(c, 0, idx).LocalSet(e).
		LocalGet(e).I32Load(0).Call(g.free.Index()).
		LocalGet(e).I32Load(8).Call(g.free.Index()).
		LocalGet(0).I32Load(offLen).LocalSet(n).
		LocalGet(e).
		LocalGet(e).I32Const(contract.EntrySize).I32Add().
		LocalGet(n).LocalGet(idx).I32Sub().I32Const(1).I32Sub().I32Const(entryShift).I32Shl().
		MemoryCopy().
		LocalGet(0).LocalGet(n).I32Const(1).I32Sub().I32Store(offLen)
	g.m.ExportFunc(contract.SymDelete, f.Index())
}

func (g *gen) genSize() {
	f := g.m.Func(contract.SymSize, one, result)
	f.Body.LocalGet(0).I32Load(offLen)
	g.m.ExportFunc(contract.SymSize, f.Index())
}

// lookup(store, key*, out*) -> found. A miss writes an empty view.
func (g *gen) genLookup() {
	f := g.m.Func(contract.SymLookup, three, result)
	kp := f.Local(i32)
	kl := f.Local(i32)
	idx := f.Local(i32)
	e := f.Local(i32)

	c := f.Body
	loadView(c, 1, kp, kl).
		LocalGet(0).LocalGet(kp).LocalGet(kl).Call(g.find.Index()).LocalSet(idx).
		LocalGet(0).LocalGet(idx).LocalGet(kp).LocalGet(kl).Call(g.found.Index()).I32Eqz().
		If().
		LocalGet(2).I32Const(0).I32Store(0).
		LocalGet(2).I32Const(0).I32Store(4).
		I32Const(0).Return().
		End()
	entry(c, 0, idx).LocalSet(e).
		LocalGet(2).LocalGet(e).I32Load(8).I32Store(0).
		LocalGet(2).LocalGet(e).I32Load(12).I32Store(4).
		I32Const(1)
	g.m.ExportFunc(contract.SymLookup, f.Index())
}

// enumerate(ret, store): ret <- OwnedView{copy of entries, len, free}
func (g *gen) genEnumerate() {
	f := g.m.Func(contract.SymEnumerate, two, none)
	n := f.Local(i32)
	p := f.Local(i32)
	f.Body.
		LocalGet(1).I32Load(offLen).LocalSet(n).
		LocalGet(n).I32Const(entryShift).I32Shl().Call(g.alloc.Index()).LocalSet(p).
		LocalGet(p).LocalGet(1).I32Load(offEntries).LocalGet(n).I32Const(entryShift).I32Shl().MemoryCopy().
		LocalGet(0).LocalGet(p).I32Store(0).
		LocalGet(0).LocalGet(n).I32Store(4).
		LocalGet(0).I32Const(SlotDestroyEntries).I32Store(8)
	g.m.ExportFunc(contract.SymEnumerate, f.Index())
}

func (g *gen) genClear() {
	f := g.m.Func(contract.SymClear, one, none)
	f.Body.
		LocalGet(0).Call(g.freeData.Index()).
		LocalGet(0).I32Const(0).I32Store(offLen)
	g.m.ExportFunc(contract.SymClear, f.Index())
}

// for_each(store, visitor*) takes the closure out of visitor*, calls it per
// entry until it returns 0 and then destroys it.
func (g *gen) genForEach() {
	f := g.m.Func(contract.SymForEach, two, none)
	call := f.Local(i32)
	state := f.Local(i32)
	destroy := f.Local(i32)
	i := f.Local(i32)
	e := f.Local(i32)

	c := f.Body
	c.LocalGet(1).I32Load(0).LocalSet(call).
		LocalGet(1).I32Load(4).LocalSet(state).
		LocalGet(1).I32Load(8).LocalSet(destroy).
		LocalGet(1).I32Const(0).I32Const(abi.ClosureSize).MemoryFill().
		Block().
		Loop().
		LocalGet(i).LocalGet(0).I32Load(offLen).I32GeU().BrIf(1)
	entry(c, 0, i).LocalSet(e).
		LocalGet(state).
		LocalGet(e).
		LocalGet(e).I32Const(abi.ViewSize).I32Add().
		LocalGet(call).
		CallIndirect(g.visitType).
		I32Eqz().BrIf(1).
		LocalGet(i).I32Const(1).I32Add().LocalSet(i).
		Br(0).
		End().
		End().
		LocalGet(destroy).
		If().
		LocalGet(state).LocalGet(destroy).CallIndirect(g.destroyType).
		End()
	g.m.ExportFunc(contract.SymForEach, f.Index())
}

// cursor(ret, store): ret <- Closure{cursor_next, state, free}
func (g *gen) genCursor() {
	f := g.m.Func(contract.SymCursor, two, none)
	st := f.Local(i32)
	f.Body.
		I32Const(cursorState).Call(g.alloc.Index()).LocalSet(st).
		LocalGet(st).LocalGet(1).I32Store(0).
		LocalGet(st).I32Const(0).I32Store(4).
		LocalGet(0).I32Const(SlotCursorNext).I32Store(0).
		LocalGet(0).LocalGet(st).I32Store(4).
		LocalGet(0).I32Const(SlotCursorDrop).I32Store(8)
	g.m.ExportFunc(contract.SymCursor, f.Index())
}

// genDispatchers exports one call_indirect trampoline per function pointer
// signature so the host can call table entries.
func (g *gen) genDispatchers() {
	d := g.m.Func(wasmhost.ExportCallDestroy, two, none)
	d.Body.LocalGet(1).LocalGet(0).CallIndirect(g.destroyType)
	g.m.ExportFunc(wasmhost.ExportCallDestroy, d.Index())

	n := g.m.Func(wasmhost.ExportCallNext, three, result)
	n.Body.LocalGet(1).LocalGet(2).LocalGet(0).CallIndirect(g.nextType)
	g.m.ExportFunc(wasmhost.ExportCallNext, n.Index())

	v := g.m.Func(wasmhost.ExportCallVisit, four, result)
	v.Body.LocalGet(1).LocalGet(2).LocalGet(3).LocalGet(0).CallIndirect(g.visitType)
	g.m.ExportFunc(wasmhost.ExportCallVisit, v.Index())
}
