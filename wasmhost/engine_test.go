package wasmhost

import (
	"context"
	stderrors "errors"
	"testing"

	wasmffi "github.com/wippyai/wasm-ffi"
	"github.com/wippyai/wasm-ffi/errors"
	"github.com/wippyai/wasm-ffi/wasmgen"
)

var (
	i32   = []wasmgen.ValType{wasmgen.I32}
	i32x2 = []wasmgen.ValType{wasmgen.I32, wasmgen.I32}
)

// shim builds a module with memory, scratch globals and a destroy
// dispatcher. extra adds functions before encoding.
func shim(t *testing.T, scratch bool, extra func(m *wasmgen.Module)) []byte {
	t.Helper()
	m := wasmgen.NewModule()
	m.Memory(1, 2)
	m.ExportMemory(ExportMemory)
	if scratch {
		m.ExportGlobal(GlobalScratchBase, m.Global(false, 1024))
		m.ExportGlobal(GlobalScratchSize, m.Global(false, 1024))
	}

	destroyType := m.Type(i32, nil)
	d := m.Func(ExportCallDestroy, i32x2, nil)
	d.Body.LocalGet(1).LocalGet(0).CallIndirect(destroyType)
	m.ExportFunc(ExportCallDestroy, d.Index())
	// call_indirect needs a table
	m.Elem(d.Index())

	if extra != nil {
		extra(m)
	}
	bin, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return bin
}

func newEngine(t *testing.T) *Engine {
	t.Helper()
	ctx := context.Background()
	e, err := NewEngine(ctx, &Config{MemoryLimitPages: 16})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close(ctx) })
	return e
}

func TestEngine_Load(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	bin := shim(t, true, nil)

	a, err := e.Load(ctx, "shim", bin)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	b, err := e.Load(ctx, "shim", bin)
	if err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if a.Name() == b.Name() {
		t.Fatalf("instances share name %q", a.Name())
	}
	if a.Stack() == nil || a.Trampolines() == nil {
		t.Fatal("space is missing its stack or trampolines")
	}

	// instances do not share memory
	if err := a.Memory().WriteU32(64, 7); err != nil {
		t.Fatal(err)
	}
	if v, _ := b.Memory().ReadU32(64); v != 0 {
		t.Fatalf("second instance sees %d", v)
	}

	if err := a.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if e.lookup(a.Name()) != nil {
		t.Error("closed space still registered")
	}
}

func TestEngine_LoadErrors(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		wasm []byte
		kind errors.Kind
	}{
		{"garbage", []byte("not wasm"), errors.KindInvalidData},
		{"no scratch", shim(t, false, nil), errors.KindMissingExport},
		{"no memory", func() []byte {
			bin, _ := wasmgen.NewModule().Encode()
			return bin
		}(), errors.KindMissingExport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Load(ctx, tt.name, tt.wasm)
			if err == nil {
				t.Fatal("Load should fail")
			}
			var ferr *errors.Error
			if !stderrors.As(err, &ferr) {
				t.Fatalf("error %v is not structured", err)
			}
			if ferr.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", ferr.Kind, tt.kind)
			}
		})
	}
}

func TestSpace_Exports(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	bin := shim(t, true, func(m *wasmgen.Module) {
		f := m.Func("add", i32x2, i32)
		f.Body.LocalGet(0).LocalGet(1).I32Add()
		m.ExportFunc("add", f.Index())
	})
	s, err := e.Load(ctx, "exports", bin)
	if err != nil {
		t.Fatal(err)
	}

	sig, ok := s.Exports()["add"]
	if !ok {
		t.Fatal("add not listed")
	}
	if got := sig.String(); got != "(i32, i32) -> (i32)" {
		t.Errorf("signature = %s", got)
	}

	res, err := s.Call(ctx, "add", 2, 3)
	if err != nil || res[0] != 5 {
		t.Fatalf("add = %v, %v", res, err)
	}
	if _, err := s.Call(ctx, "missing"); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLink, Kind: errors.KindMissingExport}) {
		t.Fatalf("missing export error = %v", err)
	}
}

func TestSpace_Memory(t *testing.T) {
	e := newEngine(t)
	s, err := e.Load(context.Background(), "mem", shim(t, true, nil))
	if err != nil {
		t.Fatal(err)
	}
	mem := s.Memory()

	if err := mem.WriteU64(128, 0x0102030405060708); err != nil {
		t.Fatal(err)
	}
	if v, _ := mem.ReadU8(128); v != 0x08 {
		t.Errorf("ReadU8 = %#x", v)
	}
	if v, _ := mem.ReadU16(128); v != 0x0708 {
		t.Errorf("ReadU16 = %#x", v)
	}
	if v, _ := mem.ReadU32(132); v != 0x01020304 {
		t.Errorf("ReadU32 = %#x", v)
	}

	size := s.MemorySize()
	if sized, ok := mem.(wasmffi.MemorySizer); !ok || sized.Size() != size {
		t.Fatal("memory should report its size")
	}
	if size != 65536 {
		t.Fatalf("Size = %d", size)
	}
	if _, err := mem.Read(size-2, 4); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLayout, Kind: errors.KindOutOfBounds}) {
		t.Errorf("Read past end = %v", err)
	}
	if err := mem.WriteU32(size, 1); err == nil {
		t.Error("WriteU32 past end should fail")
	}
}

func TestTable_Call(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	var slot uint32
	bin := shim(t, true, func(m *wasmgen.Module) {
		// store(ptr) writes 42 at ptr
		f := m.Func("store42", i32, nil)
		f.Body.LocalGet(0).I32Const(42).I32Store(0)
		slot = m.Elem(f.Index())
	})
	s, err := e.Load(ctx, "table", bin)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Table().Call(ctx, slot, 256); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if v, _ := s.Memory().ReadU32(256); v != 42 {
		t.Fatalf("memory = %d", v)
	}

	if _, err := s.Table().Call(ctx, 0, 256); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindNullFunction}) {
		t.Errorf("null call = %v", err)
	}
	if _, err := s.Table().Call(ctx, slot+5, 256); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindTrap}) {
		t.Errorf("out of range slot = %v", err)
	}
	if _, err := s.Table().Call(ctx, slot, 1, 2); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLink, Kind: errors.KindMissingExport}) {
		t.Errorf("missing dispatcher = %v", err)
	}
}

func TestTrampolines_Unsupported(t *testing.T) {
	e := newEngine(t)
	s, err := e.Load(context.Background(), "plain", shim(t, true, nil))
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Trampolines().Make(func(context.Context, []uint64) (uint64, error) { return 0, nil }, nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindUnsupported}) {
		t.Fatalf("Make without host slots = %v", err)
	}
}
