// Package wasmhost runs wasm32 components under wazero and exposes each
// instance as an abi.Space.
//
// A component is a core module that exports its memory as "memory" and a
// small ffi shim:
//
//	ffi_call_destroy(fn, ptr)                  call_indirect a destroy function
//	ffi_call_next(fn, state, out) -> i32       call_indirect a cursor
//	ffi_call_visit(fn, state, k, v) -> i32     call_indirect a visitor
//	ffi_scratch_base, ffi_scratch_size         caller stack region (globals)
//	ffi_host_call_slot, ffi_host_drop_slot     table slots of the host imports
//	ffi_live                                   live allocation count (optional)
//
// Host closures reach Go through the "ffi" import module:
//
//	closure_call(state, k, v) -> i32
//	closure_drop(state)
//
// The component places both imports in its table at the slots it advertises,
// so a closure made by the host is indistinguishable from one made by the
// component.
//
// Library binds the key-value contract to a loaded instance after checking
// its exports against contract.SchemaText.
package wasmhost
