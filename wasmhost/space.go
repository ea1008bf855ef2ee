package wasmhost

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/contract"
	"github.com/wippyai/wasm-ffi/errors"
)

// Exported names of the ffi shim every component provides.
const (
	ExportMemory      = "memory"
	ExportCallDestroy = "ffi_call_destroy"
	ExportCallNext    = "ffi_call_next"
	ExportCallVisit   = "ffi_call_visit"
	GlobalScratchBase = "ffi_scratch_base"
	GlobalScratchSize = "ffi_scratch_size"
	GlobalHostCall    = "ffi_host_call_slot"
	GlobalHostDrop    = "ffi_host_drop_slot"
	GlobalLive        = "ffi_live"
)

// Space is the address space of one module instance.
type Space struct {
	engine *Engine
	name   string
	mod    api.Module
	mem    *memory
	table  *table
	stack  *abi.Stack
	tramp  *abi.Trampolines
}

func newSpace(e *Engine, name string, mod api.Module) (*Space, error) {
	mem := mod.ExportedMemory(ExportMemory)
	if mem == nil {
		return nil, errors.MissingExport(ExportMemory)
	}
	s := &Space{
		engine: e,
		name:   name,
		mod:    mod,
		mem:    &memory{mem: mem},
	}

	base, ok := s.Global(GlobalScratchBase)
	if !ok {
		return nil, errors.MissingExport(GlobalScratchBase)
	}
	size, ok := s.Global(GlobalScratchSize)
	if !ok {
		return nil, errors.MissingExport(GlobalScratchSize)
	}
	if base == 0 || uint64(base)+uint64(size) > uint64(mem.Size()) {
		return nil, errors.InvalidData(errors.PhaseLoad, []string{GlobalScratchBase},
			fmt.Sprintf("scratch region [%d, %d) outside memory of %d bytes", base, uint64(base)+uint64(size), mem.Size()))
	}
	s.stack = abi.NewStack(s.mem, abi.Ptr(base), size)

	call, _ := s.Global(GlobalHostCall)
	drop, _ := s.Global(GlobalHostDrop)
	s.tramp = abi.NewTrampolines(abi.FuncRef(call), abi.FuncRef(drop))

	s.table = &table{
		space:   s,
		destroy: mod.ExportedFunction(ExportCallDestroy),
		next:    mod.ExportedFunction(ExportCallNext),
		visit:   mod.ExportedFunction(ExportCallVisit),
	}
	if s.table.destroy == nil {
		return nil, errors.MissingExport(ExportCallDestroy)
	}
	return s, nil
}

// Name returns the instance name.
func (s *Space) Name() string { return s.name }

// Memory returns the instance's linear memory.
func (s *Space) Memory() abi.Memory { return s.mem }

// MemorySize returns the current size of the instance's memory in bytes.
func (s *Space) MemorySize() uint32 { return s.mem.Size() }

// Table returns a caller for the instance's function table.
func (s *Space) Table() abi.Caller { return s.table }

// Stack returns the caller stack over the module's scratch region.
func (s *Space) Stack() *abi.Stack { return s.stack }

// Trampolines returns the host closure source.
func (s *Space) Trampolines() *abi.Trampolines { return s.tramp }

// Module returns the underlying wazero module.
func (s *Space) Module() api.Module { return s.mod }

// Global reads an exported i32 global.
func (s *Space) Global(name string) (uint32, bool) {
	g := s.mod.ExportedGlobal(name)
	if g == nil || g.Type() != api.ValueTypeI32 {
		return 0, false
	}
	return uint32(g.Get()), true
}

// Exports returns the signatures of every exported function.
func (s *Space) Exports() map[string]contract.Signature {
	defs := s.mod.ExportedFunctionDefinitions()
	out := make(map[string]contract.Signature, len(defs))
	for name, def := range defs {
		var sig contract.Signature
		for _, p := range def.ParamTypes() {
			sig.Params = append(sig.Params, api.ValueTypeName(p))
		}
		for _, r := range def.ResultTypes() {
			sig.Results = append(sig.Results, api.ValueTypeName(r))
		}
		out[name] = sig
	}
	return out
}

// Call invokes an exported function.
func (s *Space) Call(ctx context.Context, symbol string, args ...uint64) ([]uint64, error) {
	fn := s.mod.ExportedFunction(symbol)
	if fn == nil {
		return nil, errors.MissingExport(symbol)
	}
	res, err := fn.Call(ctx, args...)
	if err != nil {
		return nil, errors.Trap(symbol, err)
	}
	return res, nil
}

// Close closes the module instance.
func (s *Space) Close(ctx context.Context) error {
	s.engine.forget(s.name)
	return s.mod.Close(ctx)
}

var _ abi.Space = (*Space)(nil)
