// Package contracttest checks a contract.Library implementation against the
// semantics of the key-value contract.
package contracttest

import (
	"context"
	"slices"
	"testing"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/contract"
)

// Opener returns a fresh library. The suite closes it.
type Opener func(t *testing.T) contract.Library

// Run runs every semantic check against libraries produced by open.
func Run(t *testing.T, open Opener) {
	tests := []struct {
		name string
		fn   func(t *testing.T, h *harness)
	}{
		{"ordered enumeration", testOrdered},
		{"last write wins", testOverwrite},
		{"delete", testDelete},
		{"lookup", testLookup},
		{"empty store", testEmpty},
		{"clear", testClear},
		{"for each", testForEach},
		{"for each stops early", testForEachStop},
		{"cursor", testCursor},
		{"release frees everything", testNoLeaks},
		{"double release refused", testDoubleRelease},
		{"fixed sequence", testFixedSequence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			lib := open(t)
			t.Cleanup(func() { lib.Close(ctx) })
			h := &harness{t: t, ctx: ctx, lib: lib, space: lib.Space()}
			h.destroyer = abi.NewLedger(abi.Destructors(h.space.Table()))
			tt.fn(t, h)
		})
	}
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	lib       contract.Library
	space     abi.Space
	destroyer *abi.Ledger
}

func (h *harness) create() abi.OwnedPtr {
	h.t.Helper()
	store, err := h.lib.Create(h.ctx)
	if err != nil {
		h.t.Fatalf("create: %v", err)
	}
	if store.Data == 0 || store.Destroy == 0 {
		h.t.Fatalf("create returned %+v", store)
	}
	h.destroyer.Track(store.Destroy, store.Data)
	return store
}

func (h *harness) release(r abi.Releaser) {
	h.t.Helper()
	if err := r.Release(h.ctx, h.destroyer); err != nil {
		h.t.Fatalf("release: %v", err)
	}
}

func (h *harness) insert(store abi.Ptr, key, value string) {
	h.t.Helper()
	f := h.space.Stack().Push()
	defer f.Pop()
	k, err := f.String(key)
	if err != nil {
		h.t.Fatal(err)
	}
	v, err := f.String(value)
	if err != nil {
		h.t.Fatal(err)
	}
	if err := h.lib.Insert(h.ctx, store, k, v); err != nil {
		h.t.Fatalf("insert %q: %v", key, err)
	}
}

func (h *harness) delete(store abi.Ptr, key string) {
	h.t.Helper()
	f := h.space.Stack().Push()
	defer f.Pop()
	k, _ := f.String(key)
	if err := h.lib.Delete(h.ctx, store, k); err != nil {
		h.t.Fatalf("delete %q: %v", key, err)
	}
}

func (h *harness) size(store abi.Ptr) uint32 {
	h.t.Helper()
	n, err := h.lib.Size(h.ctx, store)
	if err != nil {
		h.t.Fatalf("size: %v", err)
	}
	return n
}

func (h *harness) lookup(store abi.Ptr, key string) (string, bool) {
	h.t.Helper()
	f := h.space.Stack().Push()
	defer f.Pop()
	k, _ := f.String(key)
	v, ok, err := h.lib.Lookup(h.ctx, store, k)
	if err != nil {
		h.t.Fatalf("lookup %q: %v", key, err)
	}
	if !ok {
		return "", false
	}
	s, err := v.String(h.space.Memory())
	if err != nil {
		h.t.Fatal(err)
	}
	return s, true
}

func (h *harness) enumerate(store abi.Ptr) []contract.Pair {
	h.t.Helper()
	entries, err := h.lib.Enumerate(h.ctx, store)
	if err != nil {
		h.t.Fatalf("enumerate: %v", err)
	}
	h.destroyer.Track(entries.Destroy, entries.View.Data)
	defer h.release(&entries)

	if entries.Destroy == 0 {
		h.t.Fatal("enumerate returned a non-owning handle")
	}
	var out []contract.Pair
	for e, err := range abi.Elements(h.space.Memory(), entries.View, contract.EntryCodec) {
		if err != nil {
			h.t.Fatal(err)
		}
		k, v, err := e.Strings(h.space.Memory())
		if err != nil {
			h.t.Fatal(err)
		}
		out = append(out, contract.Pair{Key: k, Value: v})
	}
	return out
}

func (h *harness) expect(store abi.Ptr, want ...contract.Pair) {
	h.t.Helper()
	got := h.enumerate(store)
	if !slices.Equal(got, want) {
		h.t.Fatalf("entries = %v, want %v", got, want)
	}
	if n := h.size(store); n != uint32(len(want)) {
		h.t.Fatalf("size = %d, want %d", n, len(want))
	}
}

func (h *harness) live() int {
	h.t.Helper()
	n, err := h.lib.Live(h.ctx)
	if err != nil {
		h.t.Fatalf("live: %v", err)
	}
	return n
}

func testOrdered(t *testing.T, h *harness) {
	store := h.create()
	defer h.release(&store)

	for _, k := range []string{"delta", "alpha", "Charlie", "al", "", "beta"} {
		h.insert(store.Data, k, "v-"+k)
	}
	h.expect(store.Data,
		contract.Pair{Key: "", Value: "v-"},
		contract.Pair{Key: "Charlie", Value: "v-Charlie"},
		contract.Pair{Key: "al", Value: "v-al"},
		contract.Pair{Key: "alpha", Value: "v-alpha"},
		contract.Pair{Key: "beta", Value: "v-beta"},
		contract.Pair{Key: "delta", Value: "v-delta"},
	)
}

func testOverwrite(t *testing.T, h *harness) {
	store := h.create()
	defer h.release(&store)

	h.insert(store.Data, "k", "first")
	h.insert(store.Data, "k", "second, and longer")
	h.insert(store.Data, "k", "3")
	h.expect(store.Data, contract.Pair{Key: "k", Value: "3"})
}

func testDelete(t *testing.T, h *harness) {
	store := h.create()
	defer h.release(&store)

	h.insert(store.Data, "a", "1")
	h.insert(store.Data, "b", "2")
	h.insert(store.Data, "c", "3")
	h.delete(store.Data, "missing")
	h.delete(store.Data, "b")
	h.delete(store.Data, "b")
	h.expect(store.Data, contract.Pair{Key: "a", Value: "1"}, contract.Pair{Key: "c", Value: "3"})

	h.delete(store.Data, "a")
	h.delete(store.Data, "c")
	h.expect(store.Data)
}

func testLookup(t *testing.T, h *harness) {
	store := h.create()
	defer h.release(&store)

	h.insert(store.Data, "Alice", "teacher")
	h.insert(store.Data, "Bob", "")

	if v, ok := h.lookup(store.Data, "Alice"); !ok || v != "teacher" {
		t.Fatalf("lookup Alice = %q, %v", v, ok)
	}
	if v, ok := h.lookup(store.Data, "Bob"); !ok || v != "" {
		t.Fatalf("lookup Bob = %q, %v", v, ok)
	}
	if _, ok := h.lookup(store.Data, "Alic"); ok {
		t.Fatal("prefix of a key should not be found")
	}
	if _, ok := h.lookup(store.Data, "Zed"); ok {
		t.Fatal("absent key should not be found")
	}
}

func testEmpty(t *testing.T, h *harness) {
	store := h.create()
	defer h.release(&store)

	for range 3 {
		h.expect(store.Data)
	}
}

func testClear(t *testing.T, h *harness) {
	if !h.lib.Supports(contract.SymClear) {
		t.Skip("clear not exported")
	}
	store := h.create()
	defer h.release(&store)

	h.insert(store.Data, "a", "1")
	h.insert(store.Data, "b", "2")
	if err := h.lib.Clear(h.ctx, store.Data); err != nil {
		t.Fatal(err)
	}
	h.expect(store.Data)
	h.insert(store.Data, "c", "3")
	h.expect(store.Data, contract.Pair{Key: "c", Value: "3"})
}

func (h *harness) visitor(limit int, seen *[]contract.Pair, dropped *int) abi.Closure {
	h.t.Helper()
	mem := h.space.Memory()
	c, err := h.space.Trampolines().Make(func(_ context.Context, args []uint64) (uint64, error) {
		k, err := abi.LoadView(mem, abi.Ptr(args[0]))
		if err != nil {
			return 0, err
		}
		v, err := abi.LoadView(mem, abi.Ptr(args[1]))
		if err != nil {
			return 0, err
		}
		ks, _ := k.String(mem)
		vs, _ := v.String(mem)
		*seen = append(*seen, contract.Pair{Key: ks, Value: vs})
		if len(*seen) >= limit {
			return 0, nil
		}
		return 1, nil
	}, func() { *dropped++ })
	if err != nil {
		h.t.Fatal(err)
	}
	return c
}

func testForEach(t *testing.T, h *harness) {
	if !h.lib.Supports(contract.SymForEach) {
		t.Skip("for_each not exported")
	}
	store := h.create()
	defer h.release(&store)
	h.insert(store.Data, "b", "2")
	h.insert(store.Data, "a", "1")

	var seen []contract.Pair
	dropped := 0
	c := h.visitor(100, &seen, &dropped)
	if err := h.lib.ForEach(h.ctx, store.Data, c); err != nil {
		t.Fatal(err)
	}
	want := []contract.Pair{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}
	if !slices.Equal(seen, want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	if dropped != 1 || h.space.Trampolines().Live() != 0 {
		t.Fatalf("visitor not consumed: dropped = %d, live = %d", dropped, h.space.Trampolines().Live())
	}
}

func testForEachStop(t *testing.T, h *harness) {
	if !h.lib.Supports(contract.SymForEach) {
		t.Skip("for_each not exported")
	}
	store := h.create()
	defer h.release(&store)
	for _, k := range []string{"a", "b", "c", "d"} {
		h.insert(store.Data, k, k)
	}

	var seen []contract.Pair
	dropped := 0
	if err := h.lib.ForEach(h.ctx, store.Data, h.visitor(2, &seen, &dropped)); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || dropped != 1 {
		t.Fatalf("seen = %v, dropped = %d", seen, dropped)
	}
}

func testCursor(t *testing.T, h *harness) {
	if !h.lib.Supports(contract.SymCursor) {
		t.Skip("cursor not exported")
	}
	store := h.create()
	defer h.release(&store)
	h.insert(store.Data, "y", "2")
	h.insert(store.Data, "x", "1")

	cursor, err := h.lib.Cursor(h.ctx, store.Data)
	if err != nil {
		t.Fatal(err)
	}
	h.destroyer.Track(cursor.Destroy, cursor.State)

	var got []contract.Pair
	for {
		e, ok, err := contract.Next(h.ctx, h.space, &cursor)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		k, v, _ := e.Strings(h.space.Memory())
		got = append(got, contract.Pair{Key: k, Value: v})
	}
	// exhausted cursors keep reporting the end
	if _, ok, _ := contract.Next(h.ctx, h.space, &cursor); ok {
		t.Fatal("cursor produced past the end")
	}
	h.release(&cursor)
	h.release(&cursor)

	want := []contract.Pair{{Key: "x", Value: "1"}, {Key: "y", Value: "2"}}
	if !slices.Equal(got, want) {
		t.Fatalf("cursor = %v, want %v", got, want)
	}
	if _, _, err := contract.Next(h.ctx, h.space, &cursor); err == nil {
		t.Fatal("released cursor should be rejected")
	}
}

func testNoLeaks(t *testing.T, h *harness) {
	base := h.live()

	store := h.create()
	for _, p := range contract.Seed {
		h.insert(store.Data, p.Key, p.Value)
	}
	h.insert(store.Data, "Alice", "principal")
	h.delete(store.Data, "Bob")
	h.enumerate(store.Data)
	h.release(&store)
	h.release(&store)

	if n := h.live(); n != base {
		t.Fatalf("live allocations = %d, want %d", n, base)
	}
	if h.destroyer.Live() != 0 {
		t.Fatalf("ledger reports %d live handles", h.destroyer.Live())
	}
}

func testDoubleRelease(t *testing.T, h *harness) {
	store := h.create()
	alias := store
	fn, ptr := store.Destroy, store.Data

	h.release(&store)
	if err := alias.Release(h.ctx, h.destroyer); err == nil {
		t.Fatal("aliasing release should be refused by the ledger")
	}
	if n := h.destroyer.Calls(fn, ptr); n != 1 {
		t.Fatalf("destructor reached %d times", n)
	}
	if len(h.destroyer.Violations()) != 1 {
		t.Fatalf("violations = %v", h.destroyer.Violations())
	}
}

func testFixedSequence(t *testing.T, h *harness) {
	store := h.create()
	defer h.release(&store)

	for _, p := range contract.Seed {
		h.insert(store.Data, p.Key, p.Value)
	}
	h.delete(store.Data, contract.Removed)

	lines := []string{contract.SizeLine(h.size(store.Data))}
	v, ok := h.lookup(store.Data, contract.Probe)
	if !ok {
		t.Fatalf("%s not found", contract.Probe)
	}
	lines = append(lines, contract.EntryLine(contract.Probe, v))
	for _, p := range h.enumerate(store.Data) {
		lines = append(lines, contract.EntryLine(p.Key, p.Value))
	}
	if !slices.Equal(lines, contract.Golden) {
		t.Fatalf("transcript = %q, want %q", lines, contract.Golden)
	}
}
