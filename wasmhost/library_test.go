package wasmhost_test

import (
	"context"
	stderrors "errors"
	"slices"
	"testing"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/contract"
	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/exports/wasmkv"
	"github.com/wippyai/wasm-ffi/wasmgen"
	"github.com/wippyai/wasm-ffi/wasmhost"
)

func openKV(t *testing.T) *wasmhost.Library {
	t.Helper()
	ctx := context.Background()
	e, err := wasmhost.NewEngine(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close(ctx) })
	lib, err := wasmkv.Open(ctx, e)
	if err != nil {
		t.Fatal(err)
	}
	return lib
}

func TestLibrary_HostClosureFromGuest(t *testing.T) {
	ctx := context.Background()
	lib := openKV(t)
	space := lib.Space()
	d := abi.Destructors(space.Table())

	store, err := lib.Create(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Release(ctx, d)

	f := space.Stack().Push()
	for _, p := range contract.Seed {
		k, _ := f.String(p.Key)
		v, _ := f.String(p.Value)
		if err := lib.Insert(ctx, store.Data, k, v); err != nil {
			t.Fatal(err)
		}
	}
	f.Pop()

	var keys []string
	dropped := false
	visitor, err := space.Trampolines().Make(func(_ context.Context, args []uint64) (uint64, error) {
		k, err := abi.LoadView(space.Memory(), abi.Ptr(args[0]))
		if err != nil {
			return 0, err
		}
		s, _ := k.String(space.Memory())
		keys = append(keys, s)
		return 1, nil
	}, func() { dropped = true })
	if err != nil {
		t.Fatal(err)
	}
	if err := lib.ForEach(ctx, store.Data, visitor); err != nil {
		t.Fatal(err)
	}
	want := make([]string, 0, len(contract.Seed))
	for _, p := range contract.Seed {
		want = append(want, p.Key)
	}
	slices.Sort(want)
	if !slices.Equal(keys, want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	if !dropped || space.Trampolines().Live() != 0 {
		t.Fatal("visitor was not destroyed by the guest")
	}
}

func TestLibrary_HostClosureError(t *testing.T) {
	ctx := context.Background()
	lib := openKV(t)
	space := lib.Space()
	d := abi.Destructors(space.Table())

	store, _ := lib.Create(ctx)
	defer store.Release(ctx, d)
	f := space.Stack().Push()
	k, _ := f.String("k")
	lib.Insert(ctx, store.Data, k, k)
	f.Pop()

	boom := stderrors.New("visitor failed")
	visitor, _ := space.Trampolines().Make(func(context.Context, []uint64) (uint64, error) {
		return 0, boom
	}, nil)
	err := lib.ForEach(ctx, store.Data, visitor)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindTrap}) {
		t.Fatalf("ForEach = %v, want trap", err)
	}
}

func TestLibrary_InvokeHostClosureThroughTable(t *testing.T) {
	ctx := context.Background()
	lib := openKV(t)
	space := lib.Space()

	c, err := space.Trampolines().Make(func(_ context.Context, args []uint64) (uint64, error) {
		return args[0] + args[1], nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.Invoke(ctx, space.Table(), 40, 2)
	if err != nil || res[0] != 42 {
		t.Fatalf("Invoke = %v, %v", res, err)
	}
	if err := c.Release(ctx, abi.Destructors(space.Table())); err != nil {
		t.Fatal(err)
	}
	if space.Trampolines().Live() != 0 {
		t.Fatal("closure state not dropped")
	}
}

func TestBind_Validation(t *testing.T) {
	ctx := context.Background()
	e, err := wasmhost.NewEngine(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close(ctx)

	build := func(sizeResults []wasmgen.ValType) []byte {
		m := wasmgen.NewModule()
		m.Memory(1, 1)
		m.ExportMemory(wasmhost.ExportMemory)
		m.ExportGlobal(wasmhost.GlobalScratchBase, m.Global(false, 16))
		m.ExportGlobal(wasmhost.GlobalScratchSize, m.Global(false, 256))
		i32 := []wasmgen.ValType{wasmgen.I32}
		dt := m.Type(i32, nil)
		d := m.Func(wasmhost.ExportCallDestroy, []wasmgen.ValType{wasmgen.I32, wasmgen.I32}, nil)
		d.Body.LocalGet(1).LocalGet(0).CallIndirect(dt)
		m.ExportFunc(wasmhost.ExportCallDestroy, d.Index())
		m.Elem(d.Index())

		for _, sym := range contract.Required {
			sig, _ := contract.DefaultSchema().Signature(sym)
			params := make([]wasmgen.ValType, len(sig.Params))
			for i := range params {
				params[i] = wasmgen.I32
			}
			results := make([]wasmgen.ValType, len(sig.Results))
			for i := range results {
				results[i] = wasmgen.I32
			}
			if sym == contract.SymSize {
				results = sizeResults
			}
			f := m.Func(sym, params, results)
			for range results {
				f.Body.I32Const(0)
			}
			m.ExportFunc(sym, f.Index())
		}
		bin, err := m.Encode()
		if err != nil {
			t.Fatal(err)
		}
		return bin
	}

	lib, err := e.Open(ctx, "minimal", build([]wasmgen.ValType{wasmgen.I32}))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, sym := range []string{contract.SymClear, contract.SymForEach, contract.SymCursor} {
		if lib.Supports(sym) {
			t.Errorf("%s should be unsupported", sym)
		}
	}
	if err := lib.Clear(ctx, 16); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseContract, Kind: errors.KindUnsupported}) {
		t.Errorf("Clear = %v", err)
	}
	if _, err := lib.Live(ctx); err == nil {
		t.Error("Live without ffi_live should fail")
	}

	_, err = e.Open(ctx, "bad", build(nil))
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLink, Kind: errors.KindTypeMismatch}) {
		t.Fatalf("Open with wrong size signature = %v", err)
	}
}
