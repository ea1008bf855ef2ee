package wasmhost

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-ffi/abi"
	"github.com/wippyai/wasm-ffi/errors"
)

// table calls function pointers of a module. Wazero cannot call a table
// entry directly, so calls go through the module's exported dispatchers,
// chosen by argument count:
//
//	1 arg  ffi_call_destroy(fn, ptr)
//	2 args ffi_call_next(fn, state, out) -> i32
//	3 args ffi_call_visit(fn, state, key, value) -> i32
//
// Calls to the host closure slots are served in Go without entering the
// module.
type table struct {
	space   *Space
	destroy api.Function
	next    api.Function
	visit   api.Function
}

func (t *table) Call(ctx context.Context, fn uint32, args ...uint64) ([]uint64, error) {
	if fn == 0 {
		return nil, errors.NullFunction(errors.PhaseInvoke)
	}

	tramp := t.space.tramp
	call, drop := tramp.Slots()
	switch {
	case fn == uint32(call) && len(args) > 0:
		res, err := tramp.Dispatch(ctx, abi.Ptr(uint32(args[0])), args[1:])
		if err != nil {
			return nil, err
		}
		return []uint64{res}, nil
	case fn == uint32(drop) && len(args) == 1:
		tramp.Drop(abi.Ptr(uint32(args[0])))
		return nil, nil
	}

	var dispatcher api.Function
	var symbol string
	switch len(args) {
	case 1:
		dispatcher, symbol = t.destroy, ExportCallDestroy
	case 2:
		dispatcher, symbol = t.next, ExportCallNext
	case 3:
		dispatcher, symbol = t.visit, ExportCallVisit
	default:
		return nil, errors.Unsupported(errors.PhaseInvoke, "function pointer call with this many arguments")
	}
	if dispatcher == nil {
		return nil, errors.MissingExport(symbol)
	}

	full := make([]uint64, 0, len(args)+1)
	full = append(full, uint64(fn))
	full = append(full, args...)
	res, err := dispatcher.Call(ctx, full...)
	if err != nil {
		return nil, errors.Trap(symbol, err)
	}
	return res, nil
}
