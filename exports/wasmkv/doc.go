// Package wasmkv generates the key-value contract as a wasm32 module.
//
// The module is assembled instruction by instruction with wasmgen and needs
// no toolchain to build. It keeps the same store layout as the native
// implementation: a header of entries pointer, length and capacity over a
// sorted array of (key view, value view) pairs.
//
// Memory is handed out by a bump allocator. Every block carries an 8-byte
// header with a magic word; free clears it, so freeing a block twice or
// freeing a pointer the module never returned traps instead of corrupting
// the heap. The number of live blocks is exported as ffi_live.
//
// Function table:
//
//	1  destroy_store(store)
//	2  free(entries)            destroy of enumerate results
//	3  cursor_next(state, out) -> i32
//	4  free(state)              destroy of cursors
//	5  ffi.closure_call         host call slot
//	6  ffi.closure_drop         host drop slot
package wasmkv
