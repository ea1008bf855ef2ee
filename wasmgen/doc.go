// Package wasmgen assembles core wasm modules in memory.
//
// It covers the subset needed to write small wasm32 components by hand:
// function imports, one memory, one funcref table filled from slot 1, i32
// globals, exports and function bodies built with Code.
//
//	m := wasmgen.NewModule()
//	m.Memory(1, 0)
//	add := m.Func("add", []wasmgen.ValType{wasmgen.I32, wasmgen.I32}, []wasmgen.ValType{wasmgen.I32})
//	add.Body.LocalGet(0).LocalGet(1).I32Add()
//	m.ExportFunc("add", add.Index())
//	bin, err := m.Encode()
//
// The function end opcode is appended by Encode. Every Block, Loop and If
// must be closed with End before encoding.
package wasmgen
